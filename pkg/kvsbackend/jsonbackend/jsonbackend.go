// Package jsonbackend implements the content-integrity-checked JSON file
// backend: each snapshot generation is a payload file plus a 4-byte
// Adler-32 sidecar, rotated on flush and validated on load.
package jsonbackend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsmetrics"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

const defaultSnapshotMaxCount = 3

const (
	payloadExt = ".json"
	hashExt    = ".hash"
)

// Backend is the JSON file backend. The zero value is not usable; build
// one with Builder or through the registry.
type Backend struct {
	workingDir       string
	snapshotMaxCount int
}

var _ kvsbackend.Backend = (*Backend)(nil)

// Builder constructs a Backend with a fluent option style.
type Builder struct {
	workingDir       string
	snapshotMaxCount int
}

// NewBuilder returns a Builder pre-filled with defaults: the current
// working directory and 3 retained snapshots.
func NewBuilder() *Builder {
	return &Builder{snapshotMaxCount: defaultSnapshotMaxCount}
}

// WorkingDir overrides the directory snapshot and defaults files are kept
// under. Defaults to the process's current working directory.
func (b *Builder) WorkingDir(dir string) *Builder {
	b.workingDir = dir
	return b
}

// SnapshotMaxCount overrides how many snapshot generations are retained.
// Defaults to 3; 0 disables flushing entirely.
func (b *Builder) SnapshotMaxCount(n int) *Builder {
	b.snapshotMaxCount = n
	return b
}

// Build constructs the Backend.
func (b *Builder) Build() (*Backend, error) {
	dir := b.workingDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, kvserrors.FromIOError("jsonbackend.Build", err)
		}
		dir = wd
	}
	return &Backend{workingDir: dir, snapshotMaxCount: b.snapshotMaxCount}, nil
}

// ---- file naming: kvs_{instance_id}_{snapshot_id}.json and its _default variant ----

func (b *Backend) snapshotFileName(instanceID kvsbackend.InstanceID, snapshotID kvsbackend.SnapshotID) string {
	return fmt.Sprintf("kvs_%d_%d%s", instanceID, snapshotID, payloadExt)
}

func (b *Backend) snapshotHashFileName(instanceID kvsbackend.InstanceID, snapshotID kvsbackend.SnapshotID) string {
	return fmt.Sprintf("kvs_%d_%d%s", instanceID, snapshotID, hashExt)
}

func (b *Backend) defaultsFileName(instanceID kvsbackend.InstanceID) string {
	return fmt.Sprintf("kvs_%d_default%s", instanceID, payloadExt)
}

func (b *Backend) defaultsHashFileName(instanceID kvsbackend.InstanceID) string {
	return fmt.Sprintf("kvs_%d_default%s", instanceID, hashExt)
}

func (b *Backend) path(name string) string {
	return filepath.Join(b.workingDir, name)
}

// ---- load/save primitives ----

// loadPair reads and integrity-checks a payload+sidecar pair, returning the
// decoded map.
func loadPair(op, payloadPath, hashPath string) (kvsvalue.Map, error) {
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kvserrors.New(kvserrors.KindFileNotFound, op, "payload file not found: "+payloadPath)
		}
		return nil, kvserrors.New(kvserrors.KindKvsFileReadError, op, err.Error())
	}

	rawHash, err := os.ReadFile(hashPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kvserrors.New(kvserrors.KindFileNotFound, op, "hash file not found: "+hashPath)
		}
		return nil, kvserrors.New(kvserrors.KindKvsHashFileReadError, op, err.Error())
	}

	wantDigest, err := decodeDigest(op, rawHash)
	if err != nil {
		return nil, err
	}
	if gotDigest := ComputeDigest(payload); gotDigest != wantDigest {
		return nil, kvserrors.New(kvserrors.KindValidationFailed, op,
			fmt.Sprintf("digest mismatch for %s: want %x, have %x", payloadPath, wantDigest, gotDigest))
	}

	// UseNumber keeps every JSON number as a json.Number instead of
	// collapsing it through float64, so i64/u64 payloads above 2^53
	// survive the round trip exactly; decodeTagged parses each tag in
	// its own target width.
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, kvserrors.New(kvserrors.KindJSONParserError, op, err.Error())
	}
	return decodeMap(raw), nil
}

// savePair writes a payload+sidecar pair. Writes are not atomic: payload is
// written first, then the sidecar, matching the source's own ordering; a
// crash between the two is detected on next load or rotation via the
// "exactly one file of the pair exists" rule.
func savePair(op, payloadPath, hashPath string, data kvsvalue.Map) error {
	raw := encodeMap(data)
	payload, err := json.Marshal(raw)
	if err != nil {
		return kvserrors.New(kvserrors.KindJSONGeneratorError, op, err.Error())
	}
	if err := os.WriteFile(payloadPath, payload, 0o644); err != nil {
		return kvserrors.FromIOError(op, err)
	}
	if err := os.WriteFile(hashPath, encodeDigest(ComputeDigest(payload)), 0o644); err != nil {
		return kvserrors.FromIOError(op, err)
	}
	return nil
}

// ---- kvsbackend.Backend implementation ----

func (b *Backend) LoadSnapshot(_ context.Context, instanceID kvsbackend.InstanceID, snapshotID kvsbackend.SnapshotID) (kvsvalue.Map, error) {
	const op = "jsonbackend.LoadSnapshot"
	klog.V(4).Infof("LoadSnapshot called with instance %d snapshot %d", instanceID, snapshotID)
	return loadPair(op, b.path(b.snapshotFileName(instanceID, snapshotID)), b.path(b.snapshotHashFileName(instanceID, snapshotID)))
}

func (b *Backend) LoadDefaults(_ context.Context, instanceID kvsbackend.InstanceID) (kvsvalue.Map, error) {
	const op = "jsonbackend.LoadDefaults"
	klog.V(4).Infof("LoadDefaults called with instance %d", instanceID)
	return loadPair(op, b.path(b.defaultsFileName(instanceID)), b.path(b.defaultsHashFileName(instanceID)))
}

func (b *Backend) Flush(_ context.Context, instanceID kvsbackend.InstanceID, data kvsvalue.Map) error {
	const op = "jsonbackend.Flush"
	klog.V(4).Infof("Flush called with instance %d", instanceID)

	if b.snapshotMaxCount == 0 {
		klog.Warningf("snapshot_max_count == 0 for instance %d, flush ignored", instanceID)
		return nil
	}

	rotateTimer := kvsmetrics.NewOperationTimer(instanceID, kvsmetrics.OpRotate)
	if err := b.rotate(instanceID); err != nil {
		rotateTimer.ObserveError()
		return err
	}
	rotateTimer.ObserveSuccess()

	snapshot0 := b.path(b.snapshotFileName(instanceID, 0))
	hash0 := b.path(b.snapshotHashFileName(instanceID, 0))
	if err := savePair(op, snapshot0, hash0, data); err != nil {
		return err
	}
	klog.Infof("flush committed new snapshot 0 for instance %d", instanceID)
	return nil
}

// rotate renames snapshot i-1 to i for i counting down from
// snapshotMaxCount-1 to 1, so the oldest generation is evicted and every
// other generation's age increases by one.
func (b *Backend) rotate(instanceID kvsbackend.InstanceID) error {
	const op = "jsonbackend.rotate"
	for i := b.snapshotMaxCount - 1; i >= 1; i-- {
		oldID := kvsbackend.SnapshotID(i - 1)
		newID := kvsbackend.SnapshotID(i)

		oldPayload := b.path(b.snapshotFileName(instanceID, oldID))
		oldHash := b.path(b.snapshotHashFileName(instanceID, oldID))
		newPayload := b.path(b.snapshotFileName(instanceID, newID))
		newHash := b.path(b.snapshotHashFileName(instanceID, newID))

		payloadExists := fileExists(oldPayload)
		hashExists := fileExists(oldHash)

		switch {
		case payloadExists && hashExists:
			if err := os.Rename(oldPayload, newPayload); err != nil {
				return kvserrors.FromIOError(op, err)
			}
			if err := os.Rename(oldHash, newHash); err != nil {
				return kvserrors.FromIOError(op, err)
			}
		case !payloadExists && !hashExists:
			continue
		default:
			return kvserrors.New(kvserrors.KindIntegrityCorrupted, op,
				fmt.Sprintf("torn write detected for instance %d snapshot %d: payload and hash disagree on existence", instanceID, oldID))
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (b *Backend) SnapshotCount(_ context.Context, instanceID kvsbackend.InstanceID) (int, error) {
	for i := 0; i < b.snapshotMaxCount; i++ {
		payload := b.path(b.snapshotFileName(instanceID, kvsbackend.SnapshotID(i)))
		hash := b.path(b.snapshotHashFileName(instanceID, kvsbackend.SnapshotID(i)))
		if !fileExists(payload) || !fileExists(hash) {
			return i, nil
		}
	}
	return b.snapshotMaxCount, nil
}

func (b *Backend) SnapshotMaxCount() int {
	return b.snapshotMaxCount
}

func (b *Backend) SnapshotRestore(ctx context.Context, instanceID kvsbackend.InstanceID, snapshotID kvsbackend.SnapshotID) (kvsvalue.Map, error) {
	const op = "jsonbackend.SnapshotRestore"
	if snapshotID == 0 {
		return nil, kvserrors.New(kvserrors.KindInvalidSnapshotID, op, "snapshot id 0 is the live snapshot, not a restore target")
	}
	count, err := b.SnapshotCount(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if int(snapshotID) >= count {
		return nil, kvserrors.New(kvserrors.KindInvalidSnapshotID, op,
			fmt.Sprintf("snapshot %d does not exist, only %d generations exist", snapshotID, count))
	}
	klog.Infof("restoring instance %d from snapshot %d", instanceID, snapshotID)
	return b.LoadSnapshot(ctx, instanceID, snapshotID)
}
