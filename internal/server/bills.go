package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	billdomain "github.com/smallbiznis/sekarnet/internal/bill/domain"
)

const (
	proofFormField = "file"
	// multipart framing allowance on top of the proof size ceiling
	multipartOverhead = 64 << 10
)

func (s *Server) ListBills(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req billdomain.ListBillRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.billSvc.ListAll(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMyBills(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req billdomain.ListBillRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.billSvc.ListMine(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateBill(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req billdomain.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	bill, err := s.billSvc.Create(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": bill})
}

func (s *Server) GetBill(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	bill, err := s.billSvc.Get(c.Request.Context(), caller, billID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) UpdateBill(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req billdomain.UpdateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	bill, err := s.billSvc.Update(c.Request.Context(), caller, billID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) PayBill(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req billdomain.PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	bill, err := s.billSvc.Pay(c.Request.Context(), caller, billID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) VerifyPayment(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	bill, err := s.billSvc.VerifyPayment(c.Request.Context(), caller, billID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) UploadPaymentProof(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	upload, closeFn, err := readUpload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer closeFn()

	bill, err := s.billSvc.UploadProof(c.Request.Context(), caller, billID(c), upload)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bill})
}

func (s *Server) SubmitQRISProof(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	maxBytes := s.portal.Get().MaxProofBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	upload, closeFn, err := readUpload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer closeFn()

	bill, err := s.billSvc.SubmitQRISProof(c.Request.Context(), caller, billID(c), upload)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    bill,
		"message": "Payment proof uploaded, waiting for admin verification",
	})
}

func (s *Server) DownloadPaymentProof(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	proof, err := s.billSvc.OpenProof(c.Request.Context(), caller, billID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer proof.Content.Close()

	contentType := mime.TypeByExtension(path.Ext(proof.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, proof.Content, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, proof.Name),
	})
}

func (s *Server) GetQRISQuote(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	quote, err := s.billSvc.QRISQuote(c.Request.Context(), caller, billID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

// QRISImage serves the merchant's static QR code.
func (s *Server) QRISImage(c *gin.Context) {
	imagePath, ok := s.qrisImagePath(c)
	if !ok {
		return
	}
	c.File(imagePath)
}

func (s *Server) DownloadQRIS(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	bill, err := s.billSvc.Get(c.Request.Context(), caller, billID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	imagePath, ok := s.qrisImagePath(c)
	if !ok {
		return
	}
	c.FileAttachment(imagePath, fmt.Sprintf("qris-sekar-net-bill-%s.png", bill.ID.String()))
}

func (s *Server) qrisImagePath(c *gin.Context) (string, bool) {
	imagePath := strings.TrimSpace(s.portal.Get().QRImagePath)
	if imagePath == "" {
		AbortWithError(c, ErrNotFound)
		return "", false
	}
	if info, err := os.Stat(imagePath); err != nil || info.IsDir() {
		AbortWithError(c, ErrNotFound)
		return "", false
	}
	return imagePath, true
}

func readUpload(c *gin.Context) (billdomain.Upload, func(), error) {
	header, err := c.FormFile(proofFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return billdomain.Upload{}, nil, billdomain.ErrFileTooLarge
		}
		return billdomain.Upload{}, nil, newValidationError(proofFormField, "required", "file is required")
	}

	file, err := header.Open()
	if err != nil {
		return billdomain.Upload{}, nil, err
	}

	return billdomain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}, func() { _ = file.Close() }, nil
}

func billID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
