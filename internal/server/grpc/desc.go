package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/gophvault/internal/api"
)

// unary adapts a typed handler method to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(*GRPCServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var vaultServiceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodCreateCredential, (*GRPCServer).CreateCredential),
		unary(api.MethodUpdateCredential, (*GRPCServer).UpdateCredential),
		unary(api.MethodRevealCredential, (*GRPCServer).RevealCredential),
		unary(api.MethodDeleteCredential, (*GRPCServer).DeleteCredential),
		unary(api.MethodListCredentials, (*GRPCServer).ListCredentials),

		unary(api.MethodListVersions, (*GRPCServer).ListVersions),
		unary(api.MethodRevealVersion, (*GRPCServer).RevealVersion),
		unary(api.MethodRestoreVersion, (*GRPCServer).RestoreVersion),

		unary(api.MethodCreateBackup, (*GRPCServer).CreateBackup),
		unary(api.MethodValidateBackup, (*GRPCServer).ValidateBackup),
		unary(api.MethodRestoreBackup, (*GRPCServer).RestoreBackup),
		unary(api.MethodExportBackup, (*GRPCServer).ExportBackup),
		unary(api.MethodImportBackup, (*GRPCServer).ImportBackup),
		unary(api.MethodShareBackup, (*GRPCServer).ShareBackup),

		unary(api.MethodEnrollTwoFactor, (*GRPCServer).EnrollTwoFactor),
		unary(api.MethodStoreTwoFactor, (*GRPCServer).StoreTwoFactor),
		unary(api.MethodConfirmTwoFactor, (*GRPCServer).ConfirmTwoFactor),
		unary(api.MethodVerifyTwoFactor, (*GRPCServer).VerifyTwoFactor),
		unary(api.MethodConsumeRecoveryCode, (*GRPCServer).ConsumeRecoveryCode),
		unary(api.MethodRegenerateRecoveryCodes, (*GRPCServer).RegenerateRecoveryCodes),
		unary(api.MethodDisableTwoFactor, (*GRPCServer).DisableTwoFactor),
		unary(api.MethodTwoFactorStatus, (*GRPCServer).TwoFactorStatus),

		unary(api.MethodCheckBreach, (*GRPCServer).CheckBreach),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophvault/vault.json",
}
