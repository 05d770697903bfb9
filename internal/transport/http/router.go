package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// NewRouter exposes the host's peer endpoint plus health, metrics and a join QR code.
func NewRouter(host *Host, gatherer prometheus.Gatherer) *httprouter.Router {
	mux := httprouter.New()
	mux.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.GET("/peer/:code", host.ServePeer)
	mux.GET("/peer/:code/qr", qrHandler)
	return mux
}

// QRCode renders content as a PNG.
func QRCode(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	return png, nil
}

// qrHandler encodes the peer URL of the requested session, as seen by the requesting client.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	target, err := PeerURL(scheme+"://"+r.Host, strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/peer/"), "/qr"))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	png, err := QRCode(target)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
