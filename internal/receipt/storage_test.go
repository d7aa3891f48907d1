package receipt

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// describeStorage runs the behavior every Storage backend shares
func describeStorage(newStorage func() Storage) {
	var storage Storage

	BeforeEach(func() {
		storage = newStorage()
	})

	Describe("Save and Get", func() {
		It("returns the stored name and bytes", func() {
			name, err := storage.Save("test.jpg", []byte("test file content"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("test.jpg"))

			data, err := storage.Get(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("test file content"))
		})

		It("overwrites an existing name", func() {
			_, err := storage.Save("test.jpg", []byte("old"))
			Expect(err).NotTo(HaveOccurred())
			_, err = storage.Save("test.jpg", []byte("new"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get("test.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("new"))
		})

		It("rejects names that are not plain file names", func() {
			for _, name := range []string{"", ".", "..", "../escape.jpg", "dir/file.jpg", `dir\file.jpg`} {
				_, err := storage.Save(name, []byte("x"))
				Expect(err).To(MatchError(ContainSubstring("invalid file name")), name)
			}
		})
	})

	Describe("Get", func() {
		It("returns ErrFileNotFound for unknown names", func() {
			_, err := storage.Get("missing.jpg")
			Expect(err).To(MatchError(ErrFileNotFound))
		})
	})

	Describe("Delete", func() {
		It("removes the file", func() {
			_, err := storage.Save("test.jpg", []byte("x"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete("test.jpg")).To(Succeed())

			_, err = storage.Get("test.jpg")
			Expect(err).To(MatchError(ErrFileNotFound))
		})

		It("returns ErrFileNotFound for unknown names", func() {
			Expect(storage.Delete("missing.jpg")).To(MatchError(ErrFileNotFound))
		})
	})
}

var _ = Describe("LocalStorage", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	describeStorage(func() Storage {
		storage, err := NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		return storage
	})

	It("creates the directory when missing", func() {
		dir := filepath.Join(tmpDir, "nested", "uploads")
		_, err := NewLocalStorage(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(dir).To(BeADirectory())
	})

	It("writes files under the base path", func() {
		storage, err := NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		_, err = storage.Save("receipt.png", []byte("png"))
		Expect(err).NotTo(HaveOccurred())

		path := filepath.Join(tmpDir, "receipt.png")
		Expect(path).To(BeAnExistingFile())
		Expect(os.ReadFile(path)).To(Equal([]byte("png")))
	})
})
