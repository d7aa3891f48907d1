package receipt

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltStorage", func() {
	var (
		dbPath string
		opened []*BoltStorage
	)

	open := func() *BoltStorage {
		storage, err := NewBoltStorage(dbPath)
		Expect(err).NotTo(HaveOccurred())
		opened = append(opened, storage)
		return storage
	}

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "uploads.db")
		opened = nil
	})

	AfterEach(func() {
		for _, storage := range opened {
			storage.Close()
		}
	})

	describeStorage(func() Storage {
		return open()
	})

	It("keeps files across reopen", func() {
		storage := open()
		_, err := storage.Save("receipt.pdf", []byte("%PDF-1.4"))
		Expect(err).NotTo(HaveOccurred())
		Expect(storage.Close()).To(Succeed())
		opened = nil

		storage = open()
		data, err := storage.Get("receipt.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("%PDF-1.4"))
	})

	It("fails to open a path in a missing directory", func() {
		_, err := NewBoltStorage(filepath.Join(GinkgoT().TempDir(), "missing", "uploads.db"))
		Expect(err).To(MatchError(ContainSubstring("opening boltdb")))
	})
})
