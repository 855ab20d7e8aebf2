package server

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"

	"github.com/go2scope/g2s/datastore"
	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

const (
	// WebAPIPath is the prefix of all API endpoints.
	WebAPIPath = "/api/"

	// Response headers describing a raw image.
	HeaderWidth     = "X-G2s-Width"
	HeaderHeight    = "X-G2s-Height"
	HeaderPixelType = "X-G2s-Pixel-Type"
)

// BadRequest writes a 400 error with a formatted message and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	errorMsg := fmt.Sprintf("ERROR: %s (%s).", message, r.URL.Path)
	g2s.Warningf("%s\n", errorMsg)
	http.Error(w, errorMsg, http.StatusBadRequest)
}

// writeError maps dataset errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, g2s.ErrUnknownAxis), errors.Is(err, g2s.ErrOutOfBounds):
		BadRequest(w, r, "%v", err)
	case errors.Is(err, g2s.ErrLifecycle):
		g2s.Warningf("%s: %v\n", r.URL.Path, err)
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		g2s.Errorf("%s: %v\n", r.URL.Path, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, string(jsonBytes))
}

// logRequests is goji middleware logging each request with its elapsed time.
func logRequests(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		timedLog := g2s.NewTimeLog()
		h.ServeHTTP(w, r)
		timedLog.Debugf("[%s] %s %s", middleware.GetReqID(*c), r.Method, r.URL)
	}
	return http.HandlerFunc(fn)
}

// newHandler routes the API for one dataset.  Cross-origin requests are allowed from
// the given domains, or from anywhere if none are given.
func newHandler(d *datastore.Dataset, corsDomains []string) http.Handler {
	s := &previewService{dataset: d}
	mux := web.New()
	mux.Use(middleware.RequestID)
	mux.Use(logRequests)
	mux.Use(middleware.Recoverer)

	mux.Get(WebAPIPath+"info", s.infoHandler)
	mux.Get(WebAPIPath+"image", s.imageHandler)
	mux.Get(WebAPIPath+"coords", s.coordsHandler)
	mux.Get(WebAPIPath+"load", loadHandler)
	mux.Get("/metrics", promhttp.Handler())
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		BadRequest(w, r, "unknown endpoint")
	})

	if len(corsDomains) == 0 {
		return cors.AllowAll().Handler(mux)
	}
	return cors.New(cors.Options{
		AllowedOrigins: corsDomains,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	}).Handler(mux)
}

type previewService struct {
	dataset *datastore.Dataset
}

type datasetInfo struct {
	Handle    storage.Handle  `json:"handle"`
	State     string          `json:"state"`
	Axes      []string        `json:"axes"`
	Shape     []int           `json:"shape"`
	NumImages int             `json:"numImages"`
	ReadOnly  bool            `json:"readOnly"`
	Summary   json.RawMessage `json:"summary,omitempty"`
}

func (s *previewService) infoHandler(w http.ResponseWriter, r *http.Request) {
	info := datasetInfo{
		Handle:    s.dataset.Handle(),
		State:     s.dataset.State().String(),
		Axes:      s.dataset.Axes().Names(),
		Shape:     s.dataset.Shape(),
		NumImages: s.dataset.NumImages(),
		ReadOnly:  s.dataset.ReadOnly(),
	}
	if summary := s.dataset.SummaryMetadata(); summary != nil {
		blob, err := summary.MarshalJSON()
		if err != nil {
			writeError(w, r, err)
			return
		}
		info.Summary = blob
	}
	writeJSON(w, r, info)
}

// parseCoords reads a sparse coordinate from the query string.  Every parameter other
// than "format" names an axis.
func parseCoords(r *http.Request) (g2s.SparseCoord, error) {
	coords := g2s.SparseCoord{}
	for axis, values := range r.URL.Query() {
		if axis == "format" {
			continue
		}
		if len(values) != 1 {
			return nil, fmt.Errorf("axis %q given %d times", axis, len(values))
		}
		idx, err := strconv.Atoi(values[0])
		if err != nil {
			return nil, fmt.Errorf("index %q on axis %q is not an integer", values[0], axis)
		}
		coords[axis] = idx
	}
	return coords, nil
}

func (s *previewService) imageHandler(w http.ResponseWriter, r *http.Request) {
	coords, err := parseCoords(r)
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	img, found, err := s.dataset.GetImage(coords)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		http.Error(w, fmt.Sprintf("no image at %s", coords), http.StatusNotFound)
		return
	}
	switch format := r.URL.Query().Get("format"); format {
	case "", "raw":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set(HeaderWidth, strconv.Itoa(img.Width))
		w.Header().Set(HeaderHeight, strconv.Itoa(img.Height))
		w.Header().Set(HeaderPixelType, img.PixelType.String())
		if _, err := w.Write(img.Pixels); err != nil {
			g2s.Errorf("writing image %s: %v\n", coords, err)
		}
	case "png":
		preview, err := toImage(img)
		if err != nil {
			BadRequest(w, r, "%v", err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, preview); err != nil {
			g2s.Errorf("encoding png of image %s: %v\n", coords, err)
		}
	case "meta":
		writeJSON(w, r, img.Metadata)
	default:
		BadRequest(w, r, "unknown image format %q", format)
	}
}

// toImage converts little-endian pixels to an image for encoding.  32-bit pixels keep
// their upper 16 bits.
func toImage(img *g2s.Image) (image.Image, error) {
	rect := image.Rect(0, 0, img.Width, img.Height)
	n := img.Width * img.Height
	switch img.PixelType {
	case g2s.Gray8:
		gray := image.NewGray(rect)
		copy(gray.Pix, img.Pixels)
		return gray, nil
	case g2s.Gray16:
		gray := image.NewGray16(rect)
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(img.Pixels[2*i:])
			binary.BigEndian.PutUint16(gray.Pix[2*i:], v)
		}
		return gray, nil
	case g2s.Gray32:
		gray := image.NewGray16(rect)
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint32(img.Pixels[4*i:])
			binary.BigEndian.PutUint16(gray.Pix[2*i:], uint16(v>>16))
		}
		return gray, nil
	default:
		return nil, &g2s.UnsupportedImageKindError{Components: img.NumComponents()}
	}
}

func (s *previewService) coordsHandler(w http.ResponseWriter, r *http.Request) {
	coords, err := s.dataset.ImageCoords()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if coords == nil {
		coords = []g2s.SparseCoord{}
	}
	writeJSON(w, r, coords)
}

func loadHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, storage.GetLoadStats())
}
