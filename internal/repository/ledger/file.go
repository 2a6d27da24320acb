package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
)

// Record is the last known outcome of one artifact.
type Record struct {
	// ID is the artifact identifier.
	ID string
	// Category is the storage group of the artifact.
	Category artifact.Category
	// Kind is the outcome of the last ensure attempt.
	Kind artifact.OutcomeKind
	// Message describes the outcome.
	Message string
	// CheckedAt is when the outcome was produced.
	CheckedAt time.Time
}

// OK reports whether the artifact had a usable local copy at CheckedAt.
func (r Record) OK() bool {
	return r.Kind == artifact.OutcomeSuccess || r.Kind == artifact.OutcomeAlreadyValid
}

// NewRecord builds a record for desc from outcome.
func NewRecord(desc artifact.Descriptor, outcome artifact.Outcome, checkedAt time.Time) Record {
	return Record{
		ID:        desc.Identifier(),
		Category:  desc.Category(),
		Kind:      outcome.Kind,
		Message:   outcome.Message(),
		CheckedAt: checkedAt.UTC(),
	}
}

// Repository defines persistence operations for artifact records.
type Repository interface {
	Load(ctx context.Context) ([]Record, error)
	Put(ctx context.Context, records ...Record) error
}

// FileRepository persists artifact records to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) over a
// structpb.Struct document keyed by artifact identifier.
type FileRepository struct {
	// path is the filesystem location of the JSON ledger file.
	path string
	// mu protects concurrent access to the ledger file.
	mu sync.Mutex
}

const (
	// artifactsKey is the top-level document key holding the records.
	artifactsKey = "artifacts"

	// filePermissions is the mode of the ledger file.
	filePermissions = 0o600

	fieldCategory  = "category"
	fieldOutcome   = "outcome"
	fieldMessage   = "message"
	fieldCheckedAt = "checked_at"
)

// ErrNotFound is returned when the ledger file does not exist yet.
var ErrNotFound = errors.New("ledger not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads every record from disk, sorted by identifier.
func (r *FileRepository) Load(_ context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.read()
	if err != nil {
		return nil, err
	}

	return sorted(records), nil
}

// Put merges records into the ledger, replacing older entries with the same identifier.
func (r *FileRepository) Put(_ context.Context, records ...Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.read()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if existing == nil {
		existing = make(map[string]Record, len(records))
	}

	for _, record := range records {
		existing[record.ID] = record
	}

	return r.write(existing)
}

// read decodes the ledger file. The caller holds mu.
func (r *FileRepository) read() (map[string]Record, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode ledger file: %w", err)
	}

	return fromProto(&document), nil
}

// write encodes and stores the ledger file. The caller holds mu.
func (r *FileRepository) write(records map[string]Record) error {
	document, err := toProto(records)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil { //nolint:mnd // Conventional directory mode.
		return fmt.Errorf("create ledger directory: %w", err)
	}

	if err = os.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	return nil
}

// fromProto converts the structpb document into records. Malformed entries are skipped.
func fromProto(document *structpb.Struct) map[string]Record {
	artifacts := document.GetFields()[artifactsKey].GetStructValue()
	records := make(map[string]Record, len(artifacts.GetFields()))

	for id, value := range artifacts.GetFields() {
		fields := value.GetStructValue().GetFields()
		if fields == nil {
			continue
		}

		category, err := artifact.ParseCategory(fields[fieldCategory].GetStringValue())
		if err != nil {
			continue
		}

		checkedAt, _ := time.Parse(time.RFC3339Nano, fields[fieldCheckedAt].GetStringValue())

		records[id] = Record{
			ID:        id,
			Category:  category,
			Kind:      parseKind(fields[fieldOutcome].GetStringValue()),
			Message:   fields[fieldMessage].GetStringValue(),
			CheckedAt: checkedAt,
		}
	}

	return records
}

// toProto converts records into a structpb document.
func toProto(records map[string]Record) (*structpb.Struct, error) {
	artifacts := make(map[string]any, len(records))

	for id, record := range records {
		artifacts[id] = map[string]any{
			fieldCategory:  record.Category.String(),
			fieldOutcome:   record.Kind.String(),
			fieldMessage:   record.Message,
			fieldCheckedAt: record.CheckedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	return structpb.NewStruct(map[string]any{artifactsKey: artifacts})
}

// parseKind maps an outcome name back to its kind.
func parseKind(name string) artifact.OutcomeKind {
	for _, kind := range []artifact.OutcomeKind{
		artifact.OutcomeSuccess,
		artifact.OutcomeNetworkFailure,
		artifact.OutcomeDigestMismatch,
		artifact.OutcomeAlreadyValid,
		artifact.OutcomeIOFailure,
	} {
		if kind.String() == name {
			return kind
		}
	}

	return 0
}

// sorted returns the records ordered by identifier.
func sorted(records map[string]Record) []Record {
	ids := slices.Sorted(maps.Keys(records))
	result := make([]Record, 0, len(ids))

	for _, id := range ids {
		result = append(result, records[id])
	}

	return result
}
