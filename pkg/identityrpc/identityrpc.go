// Package identityrpc carries identity-of-record lookups over gRPC.
//
// Messages are google.protobuf.Struct values so that no generated code is
// needed:
//
//	request:  {"account_id": string, "known_username": string}
//	response: {"valid": bool, "username": string, "changed": bool}
package identityrpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/retrade/authmesh/pkg/identsync"
	"github.com/retrade/authmesh/pkg/jwtx"
)

const (
	ServiceName         = "authmesh.identity.v1.IdentityDirectory"
	LookupAccountMethod = "/" + ServiceName + "/LookupAccount"
)

// AccountDirectory answers lookups on the identity-of-record side.
type AccountDirectory interface {
	LookupAccount(ctx context.Context, accountID, knownUsername string) (identsync.Lookup, error)
}

// ServiceDesc describes the IdentityDirectory service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountDirectory)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LookupAccount", Handler: lookupAccountHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authmesh/identity/v1/identity.proto",
}

// RegisterServer exposes dir on s.
func RegisterServer(s grpc.ServiceRegistrar, dir AccountDirectory) {
	s.RegisterService(&ServiceDesc, dir)
}

func lookupAccountHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return serveLookup(ctx, srv.(AccountDirectory), req.(*structpb.Struct))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LookupAccountMethod}
	return interceptor(ctx, in, info, call)
}

func serveLookup(ctx context.Context, dir AccountDirectory, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	accountID := fields["account_id"].GetStringValue()
	if accountID == "" {
		return nil, status.Error(codes.InvalidArgument, "account_id is required")
	}

	lookup, err := dir.LookupAccount(ctx, accountID, fields["known_username"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.Internal, "lookup failed")
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"valid":    structpb.NewBoolValue(lookup.Valid),
		"username": structpb.NewStringValue(lookup.Username),
		"changed":  structpb.NewBoolValue(lookup.Changed),
	}}, nil
}

// Client queries a remote IdentityDirectory. It implements
// identsync.IdentityOfRecord.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// LookupAccount returns errors classified as REMOTE_IDENTITY_UNAVAILABLE.
func (c *Client) LookupAccount(ctx context.Context, accountID, knownUsername string) (identsync.Lookup, error) {
	if accountID == "" {
		return identsync.Lookup{}, errors.New("identityrpc: account id is required")
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"account_id":     structpb.NewStringValue(accountID),
		"known_username": structpb.NewStringValue(knownUsername),
	}}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LookupAccountMethod, req, resp); err != nil {
		return identsync.Lookup{}, jwtx.Wrap(jwtx.ErrorKindRemoteIdentityUnavailable,
			fmt.Errorf("identityrpc: lookup %s: %w", accountID, err))
	}

	fields := resp.GetFields()
	return identsync.Lookup{
		Valid:    fields["valid"].GetBoolValue(),
		Username: fields["username"].GetStringValue(),
		Changed:  fields["changed"].GetBoolValue(),
	}, nil
}
