// Package fakes provides test doubles for the SDK clients and stores used by
// kv2appconfig.
//
// Fakes are manually implemented (not generated) to give precise control
// over test behavior: injected failures, paging and call counting. They are
// safe for concurrent use.
//
// Usage:
//
//	kv := fakes.NewFakeAzureKeyVaultClient()
//	kv.AddSecretString("db-password", "secret123")
//	src, _ := secretsource.NewAzureKeyVaultSource(
//	    map[string]interface{}{"vault_url": "https://test-vault.vault.azure.net/"},
//	    secretsource.WithAzureKeyVaultClient(kv))
//	// Enumerate src...
package fakes
