package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// multipartBody builds a form with one file part carrying an explicit content type
func multipartBody(field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return &b, writer.FormDataContentType()
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(body)
}

var _ = Describe("Server", func() {
	var (
		scanner     *mockScanner
		storage     *mockStorage
		opts        Options
		publicURL   string
		mux         *http.ServeMux
		service     *Service
		server      *Server
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		scanner = newMockScanner()
		storage = newMockStorage()
		opts = Options{}
		publicURL = ""
		mux = http.NewServeMux()
	})

	JustBeforeEach(func() {
		service = NewService(NewStore(), scanner, storage, opts)
		server = NewServerWithMux(service, publicURL, mux)
		ghttpServer = ghttp.NewServer()
		allPaths := regexp.MustCompile(`.*`)
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, allPaths, server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	upload := func(filename, contentType string, data []byte) *http.Response {
		body, formType := multipartBody("receipt", filename, contentType, data)
		resp, err := http.Post(ghttpServer.URL()+"/api/receipts/upload", formType, body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	uploadRecord := func() *Record {
		resp := upload("receipt.jpg", "image/jpeg", []byte("fake image data"))
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var out struct {
			Success bool    `json:"success"`
			Data    *Record `json:"data"`
		}
		Expect(json.Unmarshal([]byte(readBody(resp)), &out)).To(Succeed())
		Expect(out.Success).To(BeTrue())
		return out.Data
	}

	Describe("POST /api/receipts/upload", func() {
		When("the upload succeeds", func() {
			It("returns the new record", func() {
				record := uploadRecord()
				Expect(record.ID).NotTo(BeEmpty())
				Expect(record.ParsedData.Merchant).To(Equal("Chipotle"))
				Expect(record.ParsedData.Total).To(Equal(12.84))
				Expect(record.RawText).To(ContainSubstring("CHIPOTLE"))
				Expect(record.UploadedAt).NotTo(BeZero())
			})

			It("returns an imageUrl served by the same origin", func() {
				record := uploadRecord()
				Expect(record.ImageURL).To(HavePrefix(ghttpServer.URL() + "/uploads/"))
				Expect(record.ImageURL).To(HaveSuffix(".jpg"))

				resp, err := http.Get(record.ImageURL)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
				Expect(readBody(resp)).To(Equal("fake image data"))
			})

			It("uses the camelCase wire names", func() {
				resp := upload("receipt.png", "image/png", []byte("png"))
				body := readBody(resp)
				for _, key := range []string{`"success":true`, `"imageUrl"`, `"parsedData"`, `"rawText"`, `"uploadedAt"`, `"paymentMethod"`} {
					Expect(body).To(ContainSubstring(key))
				}
				Expect(body).NotTo(ContainSubstring(`"Filename"`))
			})
		})

		When("a public URL is configured", func() {
			BeforeEach(func() {
				publicURL = "https://receipts.example.com/"
			})

			It("builds imageUrl from it", func() {
				record := uploadRecord()
				Expect(record.ImageURL).To(HavePrefix("https://receipts.example.com/uploads/"))
			})
		})

		When("the form has no receipt field", func() {
			It("returns 400 No file uploaded", func() {
				body, formType := multipartBody("other", "receipt.jpg", "image/jpeg", []byte("x"))
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts/upload", formType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(readBody(resp)).To(MatchJSON(`{"success":false,"error":"No file uploaded"}`))
			})
		})

		When("the body is not multipart", func() {
			It("returns 400 No file uploaded", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts/upload", "application/json", strings.NewReader(`{}`))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(readBody(resp)).To(ContainSubstring("No file uploaded"))
			})
		})

		When("the file is a .txt", func() {
			It("returns 400 and makes no scanner calls", func() {
				resp := upload("notes.txt", "text/plain", []byte("hello"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(readBody(resp)).To(MatchJSON(`{"success":false,"error":"Only image and PDF files are allowed!"}`))
				Expect(scanner.calls()).To(BeZero())
			})
		})

		When("the file is over the size ceiling", func() {
			BeforeEach(func() {
				opts.MaxUploadBytes = 8
			})

			It("returns 413", func() {
				resp := upload("receipt.jpg", "image/jpeg", []byte("more than eight bytes"))
				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				Expect(readBody(resp)).To(ContainSubstring("File is too large"))
				Expect(scanner.calls()).To(BeZero())
			})
		})

		When("the request body exceeds the size ceiling", func() {
			BeforeEach(func() {
				opts.MaxUploadBytes = 8
			})

			It("returns 413 without scanning", func() {
				body, formType := multipartBody("receipt", "receipt.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 2<<20))
				req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", body)
				req.Header.Set("Content-Type", formType)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
				Expect(rec.Body.String()).To(MatchJSON(`{"success":false,"error":"File is too large. Maximum size is 8 bytes"}`))
				Expect(scanner.calls()).To(BeZero())
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				scanner.extractErr = errors.New("vision api down")
			})

			It("returns 500 with a user-facing message and stores nothing", func() {
				resp := upload("receipt.jpg", "image/jpeg", []byte("x"))
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(readBody(resp)).To(MatchJSON(`{"success":false,"error":"Failed to extract text from image"}`))
				Expect(service.Count()).To(BeZero())
				Expect(storage.count()).To(BeZero())
			})
		})

		When("the structuring reply is unusable", func() {
			BeforeEach(func() {
				scanner.reply = "no json here"
			})

			It("returns 500 with a user-facing message", func() {
				resp := upload("receipt.jpg", "image/jpeg", []byte("x"))
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(readBody(resp)).To(MatchJSON(`{"success":false,"error":"Failed to parse receipt data"}`))
				Expect(service.Count()).To(BeZero())
			})
		})
	})

	Describe("GET /api/receipts", func() {
		It("returns an empty array with no receipts", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(readBody(resp)).To(MatchJSON(`[]`))
		})

		It("returns receipts most recent first", func() {
			first := uploadRecord()
			second := uploadRecord()

			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			var records []*Record
			Expect(json.Unmarshal([]byte(readBody(resp)), &records)).To(Succeed())
			Expect(recordIDs(records)).To(Equal([]string{second.ID, first.ID}))
		})

		It("applies query filters", func() {
			uploadRecord()

			resp, err := http.Get(ghttpServer.URL() + "/api/receipts?category=Travel")
			Expect(err).NotTo(HaveOccurred())
			Expect(readBody(resp)).To(MatchJSON(`[]`))

			resp, err = http.Get(ghttpServer.URL() + "/api/receipts?q=chip")
			Expect(err).NotTo(HaveOccurred())
			var records []*Record
			Expect(json.Unmarshal([]byte(readBody(resp)), &records)).To(Succeed())
			Expect(records).To(HaveLen(1))
		})

		It("rejects invalid filters", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts?sort=tax")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(readBody(resp)).To(ContainSubstring(`"success":false`))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		It("returns the receipt", func() {
			record := uploadRecord()

			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/" + record.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var got Record
			Expect(json.Unmarshal([]byte(readBody(resp)), &got)).To(Succeed())
			Expect(got.ID).To(Equal(record.ID))
		})

		It("returns 404 for unknown ids", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(readBody(resp)).To(MatchJSON(`{"success":false,"error":"Receipt not found"}`))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		deleteReceipt := func(id string) *http.Response {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/receipts/"+id, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("deletes the receipt and its file", func() {
			record := uploadRecord()

			resp := deleteReceipt(record.ID)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(MatchJSON(`{"success":true,"message":"Receipt deleted successfully"}`))
			Expect(service.Count()).To(BeZero())
			Expect(storage.count()).To(BeZero())
		})

		It("returns 404 when deleting twice", func() {
			record := uploadRecord()
			readBody(deleteReceipt(record.ID))

			resp := deleteReceipt(record.ID)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(readBody(resp)).To(MatchJSON(`{"success":false,"error":"Receipt not found"}`))
		})
	})

	Describe("GET /api/receipts/stats", func() {
		It("returns zeroed stats with no receipts", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/stats")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(MatchJSON(`{"totalSpent":0,"totalReceipts":0,"monthlySpending":[],"categoryBreakdown":[]}`))
		})

		It("aggregates uploaded receipts", func() {
			uploadRecord()
			uploadRecord()

			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/stats")
			Expect(err).NotTo(HaveOccurred())
			Expect(readBody(resp)).To(MatchJSON(`{
				"totalSpent": 25.68,
				"totalReceipts": 2,
				"monthlySpending": [{"month": "2024-01", "amount": 25.68}],
				"categoryBreakdown": [{"category": "Food", "amount": 25.68}]
			}`))
		})
	})

	Describe("GET /api/health", func() {
		It("reports OK and the receipt count", func() {
			uploadRecord()

			resp, err := http.Get(ghttpServer.URL() + "/api/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var health healthResponse
			Expect(json.Unmarshal([]byte(readBody(resp)), &health)).To(Succeed())
			Expect(health.Status).To(Equal("OK"))
			Expect(health.ReceiptsCount).To(Equal(1))
			Expect(health.Timestamp).NotTo(BeEmpty())
		})
	})

	Describe("GET /uploads/{name}", func() {
		It("returns 404 for unknown files", func() {
			resp, err := http.Get(ghttpServer.URL() + "/uploads/missing.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			readBody(resp)
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests with 204", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/receipts/upload", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			readBody(resp)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
		})

		It("adds headers to regular responses", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/health")
			Expect(err).NotTo(HaveOccurred())
			readBody(resp)
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("statusRecorder", func() {
		It("unwraps to the underlying writer", func() {
			w := httptest.NewRecorder()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			Expect(rec.Unwrap()).To(BeIdenticalTo(w))
			Expect(http.NewResponseController(rec).Flush()).To(Succeed())
			Expect(w.Flushed).To(BeTrue())
		})
	})

	When("a handler panics", func() {
		BeforeEach(func() {
			mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			})
		})

		It("returns a JSON 500", func() {
			resp, err := http.Get(ghttpServer.URL() + "/boom")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(readBody(resp)).To(MatchJSON(`{"success":false,"error":"Internal server error"}`))
		})
	})
})
