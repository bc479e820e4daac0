package automation

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"kitstock/model"
	"kitstock/render"
	"kitstock/units"
)

// PNGRasterizer is what the preview handler needs from a Rasterizer.
type PNGRasterizer interface {
	RasterizePNG(ctx context.Context, svg string, wpx, hpx, scale float64) ([]byte, error)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

type previewRequest struct {
	Template model.TagTemplate `json:"template"`
	Data     map[string]string `json:"data"`
}

// PreviewPNGHandler renders a posted template with sample data and returns it
// as PNG. ?scale= overrides defaultScale.
func PreviewPNGHandler(rz PNGRasterizer, defaultScale float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req previewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Template.WidthMM <= 0 || req.Template.HeightMM <= 0 {
			writeJSONError(w, "template width and height must be positive", http.StatusBadRequest)
			return
		}

		scale := defaultScale
		if s := r.URL.Query().Get("scale"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v <= 0 || v > 8 {
				writeJSONError(w, "scale must be a number in (0, 8]", http.StatusBadRequest)
				return
			}
			scale = v
		}

		svg := render.GenerateSVG(req.Template, req.Data)
		png, err := rz.RasterizePNG(r.Context(), svg,
			units.MMToPX(req.Template.WidthMM), units.MMToPX(req.Template.HeightMM), scale)
		if err != nil {
			zap.S().Errorf("PNG preview failed: %v", err)
			writeJSONError(w, "failed to rasterize label: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}
