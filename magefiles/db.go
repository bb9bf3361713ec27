//go:build mage

package main

import (
	"fmt"
	"os"
)

// Resetdb removes the local database and its WAL sidecars so the next
// sync starts from an empty schema.
func Resetdb() error {
	removed := false
	for _, path := range []string{"faculty.db", "faculty.db-wal", "faculty.db-shm"} {
		err := os.Remove(path)
		if err == nil {
			fmt.Println("removed", path)
			removed = true
			continue
		}
		if !os.IsNotExist(err) {
			return err
		}
	}
	if !removed {
		fmt.Println("No database to remove.")
	}
	return nil
}
