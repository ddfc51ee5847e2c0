package api

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gophvault.VaultService"

// Method names of the vault service.
const (
	MethodCreateCredential = "CreateCredential"
	MethodUpdateCredential = "UpdateCredential"
	MethodRevealCredential = "RevealCredential"
	MethodDeleteCredential = "DeleteCredential"
	MethodListCredentials  = "ListCredentials"

	MethodListVersions   = "ListVersions"
	MethodRevealVersion  = "RevealVersion"
	MethodRestoreVersion = "RestoreVersion"

	MethodCreateBackup   = "CreateBackup"
	MethodValidateBackup = "ValidateBackup"
	MethodRestoreBackup  = "RestoreBackup"
	MethodExportBackup   = "ExportBackup"
	MethodImportBackup   = "ImportBackup"
	MethodShareBackup    = "ShareBackup"

	MethodEnrollTwoFactor         = "EnrollTwoFactor"
	MethodStoreTwoFactor          = "StoreTwoFactor"
	MethodConfirmTwoFactor        = "ConfirmTwoFactor"
	MethodVerifyTwoFactor         = "VerifyTwoFactor"
	MethodConsumeRecoveryCode     = "ConsumeRecoveryCode"
	MethodRegenerateRecoveryCodes = "RegenerateRecoveryCodes"
	MethodDisableTwoFactor        = "DisableTwoFactor"
	MethodTwoFactorStatus         = "TwoFactorStatus"

	MethodCheckBreach = "CheckBreach"
)

// FullMethod returns "/<service>/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
