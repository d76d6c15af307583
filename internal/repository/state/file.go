package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
)

const timestampField = "timestamp"

// Repository loads and saves board snapshots.
type Repository interface {
	Load(ctx context.Context) (*board.Snapshot, error)
	Save(ctx context.Context, snapshot *board.Snapshot) error
}

// FileRepository keeps the snapshot in a JSON file. The document is a
// google.protobuf.Struct rendered with protojson, the same shape the
// bridge service returns from GetState.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// ErrNotFound is returned when no snapshot has been saved yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository returns a repository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*board.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return FromStruct(&doc)
}

// Save writes the snapshot to disk.
func (r *FileRepository) Save(_ context.Context, snapshot *board.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := ToStruct(snapshot)
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// ToStruct renders a snapshot as {active_device, state, timestamp}.
func ToStruct(snapshot *board.Snapshot) (*structpb.Struct, error) {
	state := snapshot.State
	if state == nil {
		state = board.NewState()
	}

	fields := map[string]any{
		host.ActiveDeviceField: snapshot.Device,
		host.StateField:        state.Map(),
	}

	if !snapshot.Timestamp.IsZero() {
		fields[timestampField] = snapshot.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	doc, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	return doc, nil
}

// FromStruct parses a document produced by ToStruct.
func FromStruct(doc *structpb.Struct) (*board.Snapshot, error) {
	fields := doc.GetFields()

	snapshot := &board.Snapshot{
		Device: fields[host.ActiveDeviceField].GetStringValue(),
		State:  board.NewState(),
	}

	if raw := fields[timestampField].GetStringValue(); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode timestamp: %w", err)
		}

		snapshot.Timestamp = ts
	}

	if state := fields[host.StateField].GetStructValue(); state != nil {
		if err := snapshot.State.ApplyUpdate(state.AsMap()); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
	}

	return snapshot, nil
}
