// Package secretref decides how a source secret is represented in the
// target configuration store.
//
// Two handling modes exist:
//
//   - reference (default): the setting value is a Key Vault reference
//     document, {"uri":"https://<vault>.vault.azure.net/secrets/<name>"},
//     with content type ContentTypeKeyVaultRef. The secret value never
//     leaves the vault.
//   - copy: the secret value itself is written. Copy mode is gated by a
//     guardrail that needs the copy flag, the confirmation text
//     "I UNDERSTAND" and a non-empty allow-list of secret names. Names not
//     on the allow-list are skipped.
//
// ResolveSecretURI validates a Key Vault secret identifier and pins a
// missing version to "latest". Evaluate applies mode, guardrail and URI
// resolution to a batch of secret URIs and reports one outcome per URI.
package secretref
