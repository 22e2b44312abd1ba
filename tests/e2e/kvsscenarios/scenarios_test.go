package kvsscenarios

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/qorix-group/kvs/pkg/kvs"
	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvsbackend/jsonbackend"
	"github.com/qorix-group/kvs/pkg/kvsbackend/memorybackend"
	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

func jsonParams(dir string, maxCount int) kvsvalue.Map {
	return kvsvalue.Map{
		"name":               kvsvalue.Str("json"),
		"working_dir":        kvsvalue.Str(dir),
		"snapshot_max_count": kvsvalue.U64(uint64(maxCount)),
	}
}

var _ = Describe("S1 Basic round-trip", func() {
	It("recovers set values through a fresh build with Required load", func() {
		dir, err := os.MkdirTemp("", "kvs-s1-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		ctx := context.Background()

		inst, err := kvs.NewBuilder(0).Pool(kvs.NewPool()).KvsLoadPolicy(kvs.PolicyIgnored).
			BackendParameters(jsonParams(dir, 3)).Build(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Set("number", kvsvalue.F64(123.0))).To(Succeed())
		Expect(inst.Set("bool", kvsvalue.Bool(true))).To(Succeed())
		Expect(inst.Flush(ctx)).To(Succeed())

		// A fresh pool forces this build to actually load snapshot 0 from
		// disk rather than reconciling against the still-resident instance.
		reread, err := kvs.NewBuilder(0).Pool(kvs.NewPool()).KvsLoadPolicy(kvs.PolicyRequired).
			BackendParameters(jsonParams(dir, 3)).Build(ctx)
		Expect(err).NotTo(HaveOccurred())

		n, err := kvs.GetAs[float64](reread, "number")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(123.0))

		b, err := kvs.GetAs[bool](reread, "bool")
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(BeTrue())
	})
})

var _ = Describe("S2 Snapshot counting", func() {
	It("tracks the sequence 1,2,3,3,3 as flushes accumulate past max=3", func() {
		dir, err := os.MkdirTemp("", "kvs-s2-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		ctx := context.Background()
		inst, err := kvs.NewBuilder(0).Pool(kvs.NewPool()).KvsLoadPolicy(kvs.PolicyIgnored).
			BackendParameters(jsonParams(dir, 3)).Build(ctx)
		Expect(err).NotTo(HaveOccurred())

		expected := []int{1, 2, 3, 3, 3}
		for i := 0; i < 5; i++ {
			Expect(inst.Set("c", kvsvalue.U32(uint32(i)))).To(Succeed())
			Expect(inst.Flush(ctx)).To(Succeed())

			count, err := inst.SnapshotCount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(expected[i]), "after flush %d", i)
		}
	})
})

var _ = Describe("S3 Restore", func() {
	It("restores older generations and rejects out-of-range ids", func() {
		dir, err := os.MkdirTemp("", "kvs-s3-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		ctx := context.Background()
		inst, err := kvs.NewBuilder(0).Pool(kvs.NewPool()).KvsLoadPolicy(kvs.PolicyIgnored).
			BackendParameters(jsonParams(dir, 3)).Build(ctx)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 5; i++ {
			Expect(inst.Set("c", kvsvalue.U32(uint32(i)))).To(Succeed())
			Expect(inst.Flush(ctx)).To(Succeed())
		}

		Expect(inst.SnapshotRestore(ctx, 2)).To(Succeed())
		c, err := kvs.GetAs[uint32](inst, "c")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(uint32(2)))

		err = inst.SnapshotRestore(ctx, 0)
		Expect(kvserrors.Is(err, kvserrors.KindInvalidSnapshotID)).To(BeTrue())

		err = inst.SnapshotRestore(ctx, 3)
		Expect(kvserrors.Is(err, kvserrors.KindInvalidSnapshotID)).To(BeTrue())
	})
})

var _ = Describe("S4 Integrity", func() {
	It("fails a Required load when a hash sidecar is corrupted", func() {
		dir, err := os.MkdirTemp("", "kvs-s4-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		ctx := context.Background()
		inst, err := kvs.NewBuilder(1).Pool(kvs.NewPool()).KvsLoadPolicy(kvs.PolicyIgnored).
			BackendParameters(jsonParams(dir, 3)).Build(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Set("k", kvsvalue.Str("v"))).To(Succeed())
		Expect(inst.Flush(ctx)).To(Succeed())

		hashPath := filepath.Join(dir, "kvs_1_0.hash")
		Expect(os.WriteFile(hashPath, []byte{0, 0, 0, 0}, 0o600)).To(Succeed())

		_, err = kvs.NewBuilder(1).Pool(kvs.NewPool()).KvsLoadPolicy(kvs.PolicyRequired).
			BackendParameters(jsonParams(dir, 3)).Build(ctx)
		Expect(kvserrors.Is(err, kvserrors.KindValidationFailed)).To(BeTrue())
	})
})

var _ = Describe("S5 Defaults required missing", func() {
	It("fails the build when defaults are Required but absent", func() {
		dir, err := os.MkdirTemp("", "kvs-s5-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		_, err = kvs.NewBuilder(0).Pool(kvs.NewPool()).DefaultsPolicy(kvs.PolicyRequired).
			BackendParameters(jsonParams(dir, 3)).Build(context.Background())
		Expect(kvserrors.Is(err, kvserrors.KindFileNotFound)).To(BeTrue())
	})
})

var _ = Describe("S6 Parameters mismatch", func() {
	It("rejects a second build of the same id with disagreeing explicit options", func() {
		dir, err := os.MkdirTemp("", "kvs-s6-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		pool := kvs.NewPool()
		ctx := context.Background()
		_, err = kvs.NewBuilder(2).Pool(pool).DefaultsPolicy(kvs.PolicyIgnored).
			BackendParameters(jsonParams(dir, 3)).Build(ctx)
		Expect(err).NotTo(HaveOccurred())

		_, err = kvs.NewBuilder(2).Pool(pool).DefaultsPolicy(kvs.PolicyOptional).
			BackendParameters(jsonParams(dir, 3)).Build(ctx)
		Expect(kvserrors.Is(err, kvserrors.KindInstanceParametersMismatch)).To(BeTrue())
	})
})

var _ = Describe("S7 Registry multi-backend", func() {
	It("builds two instances against two different backends concurrently without conflict", func() {
		store := memorybackend.NewStore()
		reg := kvsbackend.NewRegistry()
		Expect(reg.Register("memory-backend", memorybackend.NewFactory(store))).To(Succeed())

		dir, err := os.MkdirTemp("", "kvs-s7-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })
		Expect(reg.Register("json", jsonbackend.Factory{})).To(Succeed())

		pool := kvs.NewPool()
		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers*2)

		for i := 0; i < workers; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				inst, err := kvs.NewBuilder(3).Pool(pool).Registry(reg).
					BackendParameters(jsonParams(dir, 3)).Build(context.Background())
				errs[i] = err
				if err == nil {
					errs[i] = inst.Set(fmt.Sprintf("k%d", i), kvsvalue.I32(int32(i)))
				}
			}(i)
			go func(i int) {
				defer wg.Done()
				inst, err := kvs.NewBuilder(4).Pool(pool).Registry(reg).
					BackendParameters(kvsvalue.Map{"name": kvsvalue.Str("memory-backend")}).Build(context.Background())
				errs[workers+i] = err
				if err == nil {
					errs[workers+i] = inst.Set(fmt.Sprintf("k%d", i), kvsvalue.I32(int32(i)))
				}
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}

		jsonInst, err := kvs.NewBuilder(3).Pool(pool).Registry(reg).
			BackendParameters(jsonParams(dir, 3)).Build(context.Background())
		Expect(err).NotTo(HaveOccurred())
		keys, err := jsonInst.AllKeys()
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(HaveLen(workers))
	})
})

var _ = Describe("S8 Poisoned lock", func() {
	It("fails fast with KindMutexLockFailed after a panic under the lock", func() {
		store := memorybackend.NewStore()
		reg := kvsbackend.NewRegistry()
		Expect(reg.Register("memory-backend", memorybackend.NewFactory(store))).To(Succeed())

		inst, err := kvs.NewBuilder(0).Pool(kvs.NewPool()).Registry(reg).
			BackendParameters(kvsvalue.Map{"name": kvsvalue.Str("memory-backend")}).Build(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(inst.Set("k", kvsvalue.I32(0))).To(Succeed())
		kvs.PoisonForTesting(inst)

		_, err = inst.Get("k")
		Expect(kvserrors.Is(err, kvserrors.KindMutexLockFailed)).To(BeTrue())
	})
})
