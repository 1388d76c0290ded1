// Command scramble-web serves a minimal upload form: post a PDF and a
// scramble ratio, get the scrambled document back as a download.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/VermiIIi0n/scramble-pdf/classify"
	"github.com/VermiIIi0n/scramble-pdf/ir"
	"github.com/VermiIIi0n/scramble-pdf/scramble"
	"github.com/VermiIIi0n/scramble-pdf/writer"
)

// Uploads are capped at 20 MB.
const maxUploadBytes = 20 << 20

const defaultRatio = 0.3

const indexPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>scramble-pdf</title></head>
<body>
<h1>scramble-pdf</h1>
<p>Upload a PDF (20 MB max) and pick how much of each font's mapping to scramble.</p>
<form method="post" action="/scramble" enctype="multipart/form-data">
  <p><input type="file" name="pdf" accept="application/pdf" required></p>
  <p><label>Ratio: <input type="number" name="ratio" min="0" max="1" step="0.1" value="0.3"></label></p>
  <p><button type="submit">Scramble</button></p>
</form>
</body>
</html>
`

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleIndex)
	mux.HandleFunc("/scramble", handleScramble)

	fmt.Printf("Listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "scramble-web: %v\n", err)
		os.Exit(1)
	}
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexPage)
}

func handleScramble(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "upload too large or malformed (20 MB limit)", http.StatusRequestEntityTooLarge)
		return
	}

	file, _, err := r.FormFile("pdf")
	if err != nil {
		http.Error(w, "missing pdf file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}

	ratio := defaultRatio
	if v := r.FormValue("ratio"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "invalid ratio", http.StatusBadRequest)
			return
		}
		ratio = clampRatio(parsed)
	}

	out, err := scramblePDF(r.Context(), data, ratio)
	if err != nil {
		http.Error(w, fmt.Sprintf("scramble failed: %v", err), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="processed.pdf"`)
	w.Write(out)
}

func scramblePDF(ctx context.Context, data []byte, ratio float64) ([]byte, error) {
	doc, err := ir.NewDefault().Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	_, err = scramble.Run(ctx, doc, scramble.Options{
		Ratio:  ratio,
		Policy: classify.DefaultRules(),
		Cache:  scramble.NewFontCache(),
	})
	if err != nil {
		return nil, err
	}
	return writer.Serialize(doc.Raw)
}

func clampRatio(r float64) float64 {
	if r < 0.0 {
		return 0.0
	}
	if r > 1.0 {
		return 1.0
	}
	return r
}
