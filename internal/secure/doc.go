// Package secure keeps secret values sealed in memory between the moment
// they are fetched from the source and the moment the desired state is
// built.
//
// Values are held in memguard enclaves: encrypted at rest
// (XSalsa20Poly1305), mlocked where the platform allows it, and wiped when
// a buffer is opened and destroyed. Call memguard.Purge() at process exit
// to wipe anything still held.
//
//	cache := secure.NewValueCache()
//	defer cache.Destroy()
//	cache.Put("db-password", value)
//	plain, ok, err := cache.Get("db-password")
//
// This does not protect against an attacker with root access to the
// running process.
package secure
