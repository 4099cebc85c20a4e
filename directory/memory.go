package directory

import (
	"context"
	"strings"
	"sync"

	goVerify "github.com/MrEthical07/goVerify"
)

// MemoryDirectory is a mutex-guarded in-process directory.
type MemoryDirectory struct {
	mu      sync.RWMutex
	records []goVerify.UserRecord
}

var _ goVerify.DirectoryLookup = (*MemoryDirectory)(nil)

func NewMemoryDirectory(records ...goVerify.UserRecord) *MemoryDirectory {
	d := &MemoryDirectory{}
	for _, r := range records {
		d.Add(r)
	}
	return d
}

func (d *MemoryDirectory) Add(rec goVerify.UserRecord) {
	d.mu.Lock()
	d.records = append(d.records, rec)
	d.mu.Unlock()
}

func (d *MemoryDirectory) Find(_ context.Context, identity, tenancy string) (goVerify.UserRecord, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return goVerify.UserRecord{}, goVerify.ErrDirectoryNotFound
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.records {
		if tenancy != "" && r.Tenancy != tenancy {
			continue
		}
		if (r.Email != "" && strings.EqualFold(r.Email, identity)) || (r.Phone != "" && r.Phone == identity) {
			return r, nil
		}
	}
	return goVerify.UserRecord{}, goVerify.ErrDirectoryNotFound
}
