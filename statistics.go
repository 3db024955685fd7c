package s3c

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatRegistry = prometheus.NewRegistry()

	statApiCall = promauto.With(StatRegistry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ApiOperation",
			Help: "Total count of API calls by operation and result code",
		},
		[]string{
			"operation",
			"bucket",
			"code",
		},
	)
	statBytesTransferredOut = promauto.With(StatRegistry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "BytesTransferredOut",
			Help: "Number of bytes uploaded by PutObject",
		},
		[]string{
			"bucket",
		},
	)
	statBytesTransferredIn = promauto.With(StatRegistry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "BytesTransferredIn",
			Help: "Number of bytes downloaded by GetObject",
		},
		[]string{
			"bucket",
		},
	)
)
