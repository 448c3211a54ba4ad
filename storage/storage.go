// Package storage keeps the device-local state: the account address, the credential
// reference and the history of settled sessions.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/db"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
)

var (
	keyAccount    = []byte("account")
	keyCredential = []byte("credential")
)

type Storage struct {
	db db.DB
}

func NewStorage(db db.DB) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveAccount(account common.Address) error {
	return s.db.Set(db.NamespaceAccount, keyAccount, account.Bytes())
}

// Account returns the stored account address; ok is false when none was saved.
func (s *Storage) Account() (account common.Address, ok bool, err error) {
	value, ok, err := s.db.Get(db.NamespaceAccount, keyAccount)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(value), true, nil
}

func (s *Storage) SaveCredential(cred *credential.Credential) error {
	return s.setJSON(db.NamespaceCredential, keyCredential, cred)
}

func (s *Storage) Credential() (*credential.Credential, bool, error) {
	var cred credential.Credential
	ok, err := s.getJSON(db.NamespaceCredential, keyCredential, &cred)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cred, true, nil
}

// reportKey orders reports by start time.
func reportKey(report *types.SessionReport) []byte {
	key := make([]byte, 8, 8+len(report.SessionID))
	binary.BigEndian.PutUint64(key, uint64(report.StartedAt.UnixNano()))
	return append(key, report.SessionID...)
}

func (s *Storage) SaveReport(report *types.SessionReport) error {
	return s.setJSON(db.NamespaceSessionReport, reportKey(report), report)
}

// Reports returns every stored report, oldest first.
func (s *Storage) Reports() ([]*types.SessionReport, error) {
	iter := s.db.Iterator(db.NamespaceSessionReport)
	defer iter.Close()
	var reports []*types.SessionReport
	for ; iter.Valid(); iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return nil, err
		}
		var report types.SessionReport
		if err := json.Unmarshal(value, &report); err != nil {
			return nil, fmt.Errorf("decode session report: %w", err)
		}
		reports = append(reports, &report)
	}
	return reports, nil
}

// Report looks up one report by session id.
func (s *Storage) Report(sessionID string) (*types.SessionReport, bool, error) {
	reports, err := s.Reports()
	if err != nil {
		return nil, false, err
	}
	for _, r := range reports {
		if r.SessionID == sessionID {
			return r, true, nil
		}
	}
	return nil, false, nil
}

// Reset forgets the account and credential. Session history is kept.
func (s *Storage) Reset() error {
	bulk := s.db.NewBulk()
	if err := bulk.Delete(db.NamespaceAccount, keyAccount); err != nil {
		return err
	}
	if err := bulk.Delete(db.NamespaceCredential, keyCredential); err != nil {
		return err
	}
	return bulk.Flush()
}

// ClearHistory deletes every session report.
func (s *Storage) ClearHistory() error {
	iter := s.db.Iterator(db.NamespaceSessionReport)
	var keys [][]byte
	for ; iter.Valid(); iter.Next() {
		key, err := iter.Key()
		if err != nil {
			iter.Close()
			return err
		}
		keys = append(keys, key)
	}
	iter.Close()

	bulk := s.db.NewBulk()
	for _, key := range keys {
		if err := bulk.Delete(db.NamespaceSessionReport, key); err != nil {
			return err
		}
	}
	return bulk.Flush()
}

func (s *Storage) setJSON(namespace, key []byte, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(namespace, key, value)
}

func (s *Storage) getJSON(namespace, key []byte, v interface{}) (bool, error) {
	value, ok, err := s.db.Get(namespace, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(value, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", namespace, err)
	}
	return true, nil
}
