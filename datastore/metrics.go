package datastore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imagesWrittenMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "g2s",
		Subsystem: "dataset",
		Name:      "images_written_total",
		Help:      "Number of images accepted by PutImage",
	})
	writeCacheHitMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "g2s",
		Subsystem: "dataset",
		Name:      "write_cache_hits_total",
		Help:      "Number of image reads served from the write cache",
	})
	readCacheHitMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "g2s",
		Subsystem: "dataset",
		Name:      "read_cache_hits_total",
		Help:      "Number of image reads served from the engine read cache",
	})
	engineReadMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "g2s",
		Subsystem: "dataset",
		Name:      "engine_reads_total",
		Help:      "Number of image reads that went to the storage engine",
	})
	engineErrorMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "g2s",
		Subsystem: "dataset",
		Name:      "engine_errors_total",
		Help:      "Number of storage engine calls that failed",
	}, []string{"op"})
)
