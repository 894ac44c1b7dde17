package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TransferSchemaVersion identifies the transfer-file layout. Writer and reader
// are always the same binary, so this guards against stale files from a
// previous run, not against cross-version drift.
const TransferSchemaVersion = "1.0"

// Transfer is the on-disk container handed to a forked conversion process.
type Transfer struct {
	SchemaVersion string `json:"$schemaVersion"`
	InvocationID  string `json:"invocation_id"`
	Batch         *Batch `json:"batch"`
}

// WriteTransfer serializes the batch to path, creating parent directories.
// The batch must be serializable; callers enforce that at construction time.
func WriteTransfer(path, invocationID string, batch *Batch) error {
	if !batch.Serializable() {
		return fmt.Errorf("batch contains callback extensions and cannot cross a process boundary")
	}
	data, err := json.MarshalIndent(Transfer{
		SchemaVersion: TransferSchemaVersion,
		InvocationID:  invocationID,
		Batch:         batch,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transfer file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create transfer directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write transfer file: %w", err)
	}
	return nil
}

// ReadTransfer loads and validates a transfer file written by WriteTransfer.
func ReadTransfer(path string) (*Transfer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transfer file: %w", err)
	}
	var t Transfer
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal transfer file: %w", err)
	}
	if t.SchemaVersion != TransferSchemaVersion {
		return nil, fmt.Errorf("transfer file schema %q does not match %q", t.SchemaVersion, TransferSchemaVersion)
	}
	if t.Batch == nil || t.Batch.Len() == 0 {
		return nil, fmt.Errorf("transfer file contains no jobs")
	}
	return &t, nil
}
