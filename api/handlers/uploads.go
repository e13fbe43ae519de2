package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"
)

// UploadHandler signs direct-to-CDN photo uploads
type UploadHandler struct{}

// GenerateSignature returns a short-lived signature the client attaches
// to its CDN upload. The photo bytes never pass through this API; only
// the resulting URL comes back via the photo create endpoint.
func (u UploadHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("UPLOAD_PRESET")
	signingSecret := os.Getenv("UPLOAD_SIGNING_SECRET")

	// Create the signature
	h := hmac.New(sha1.New, []byte(signingSecret))
	h.Write([]byte("timestamp=" + timestamp + "&upload_preset=" + uploadPreset))
	signature := hex.EncodeToString(h.Sum(nil))

	// Respond with the timestamp and signature
	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
