// Package storage writes generated Go files.
//
// Writes go through a temporary file in the destination directory followed by a
// rename, so a concurrent build never reads half a file. Files whose content is
// unchanged are left alone, which keeps modification times stable for build
// caches and editors.
//
// Usage:
//
//	manager := storage.NewManager(false)
//	written, err := manager.Save("client_backon.go", code)
//	if err != nil {
//	    return err
//	}
//	if !written {
//	    // already up to date
//	}
package storage
