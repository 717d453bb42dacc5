// Package cursor defines the resumable-streaming cursor model shared by
// the provider manager's streaming operations and the import executor
//.
package cursor

import "fmt"

// PrimaryType selects which field of a Primary cursor is meaningful.
type PrimaryType string

const (
	PrimaryBlockNumber PrimaryType = "blockNumber"
	PrimaryTimestamp   PrimaryType = "timestamp"
	PrimaryOffset      PrimaryType = "offset"
	PrimarySignature   PrimaryType = "signature"
)

// Primary is the resume position for one stream. Value is a string so it
// can hold a block number, unix millis, an offset, or an opaque signature
// without the cursor model needing a case per chain.
type Primary struct {
	Type  PrimaryType
	Value string
}

// State is the full resumable position for one (account, stream_type)
// pair, persisted on Account.LastCursor.
type State struct {
	Primary           Primary
	LastTransactionID string
	TotalFetched       int64
	ProviderName       string // metadata.provider_name
}

// String renders a cursor for logging.
func (s State) String() string {
	return fmt.Sprintf("%s=%s(total=%d,provider=%s)", s.Primary.Type, s.Primary.Value, s.TotalFetched, s.ProviderName)
}

// IsZero reports whether this is an unset (start-from-beginning) cursor.
func (s State) IsZero() bool { return s.Primary.Value == "" }
