package main

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/go2scope/g2s/datastore"
	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

// exposureMs is the simulated camera exposure recorded in image metadata.
const exposureMs = 10.0

// syntheticFrame returns a 16-bit frame whose pattern depends on the image coordinate,
// so read-back can check every frame against a regenerated one.
func syntheticFrame(w, h int, coords g2s.SparseCoord) *g2s.Image {
	seed := coords.Index("channel")*7919 + coords.Index("time")*104729 + coords.Index("position")*1299709
	pix := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = uint16(seed + x + 3*y)
		}
	}
	img := g2s.NewGray16Image(pix, w, h, coords)
	img.Metadata["Exposure-ms"] = exposureMs
	img.Metadata["Camera"] = "Synthetic"
	return img
}

// DoWrite acquires synthetic frames into a new dataset from several producers, reads
// every frame back and reports bandwidth.
func DoWrite(ctx context.Context) error {
	client, err := storage.NewClient(storeConfig())
	if err != nil {
		return err
	}
	defer client.Close()

	name := *datasetName
	if name == "" {
		name = "g2s-" + time.Now().Format("20060102-150405")
	}
	d := datastore.NewDataset(client,
		datastore.WithSavePath("", name),
		datastore.WithReadCache(*readMB*g2s.Mega))
	summary := &g2s.SummaryMetadata{
		AxisOrder:          []string{"channel", "time", "position"},
		IntendedDimensions: map[string]int{"channel": *channels, "time": *timePoints, "position": *positions},
		Width:              *width,
		Height:             *height,
		PixelType:          g2s.Gray16,
		Prefix:             name,
	}
	if err := d.DeclareShape(summary); err != nil {
		return err
	}
	fmt.Printf("Dataset %s: %s, shape %v\n", name, d.Handle(), d.Shape())

	// positions are the outer loop of the acquisition, then time, then channel
	coordsCh := make(chan g2s.SparseCoord, *producers)
	var written int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(coordsCh)
		for p := 0; p < *positions; p++ {
			for t := 0; t < *timePoints; t++ {
				for c := 0; c < *channels; c++ {
					select {
					case coordsCh <- g2s.SparseCoord{"channel": c, "time": t, "position": p}:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
		}
		return nil
	})
	for i := 0; i < *producers; i++ {
		g.Go(func() error {
			for coords := range coordsCh {
				img := syntheticFrame(*width, *height, coords)
				startSave := time.Now()
				if err := d.PutImage(img); err != nil {
					return err
				}
				n := atomic.AddInt64(&written, 1)
				g2s.Debugf("Saved image %d at %s in %s\n", n-1, coords, time.Since(startSave))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.Close()
		return err
	}
	elapsed := time.Since(start)
	frameBytes := uint64(*width * *height * 2)
	total := frameBytes * uint64(written)
	fmt.Printf("Acquired %d images (%s) in %s: %s/s\n", written, humanize.Bytes(total), elapsed,
		humanize.Bytes(uint64(float64(total)/elapsed.Seconds())))

	start = time.Now()
	coords, err := d.ImageCoords()
	if err != nil {
		return err
	}
	for _, c := range coords {
		img, found, err := d.GetImage(c)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("image at %s missing on read-back", c)
		}
		if !bytes.Equal(img.Pixels, syntheticFrame(*width, *height, c).Pixels) {
			return fmt.Errorf("image at %s differs on read-back", c)
		}
	}
	fmt.Printf("Verified %d images in %s\n", len(coords), time.Since(start))

	start = time.Now()
	if err := d.Close(); err != nil {
		return err
	}
	elapsed += time.Since(start)
	fmt.Printf("Closed dataset with %d images in %s, storage bandwidth %s/s\n", d.NumImages(), time.Since(start),
		humanize.Bytes(uint64(float64(total)/elapsed.Seconds())))
	return nil
}
