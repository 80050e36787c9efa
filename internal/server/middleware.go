package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"taskapi/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

// CORS answers preflight requests and allows any origin, matching the
// permissive policy of the deployments this service runs behind.
func CORS() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

type dualCloser struct {
	io.Reader
	gzipReader io.Closer
	bodyCloser io.Closer
}

func (dc *dualCloser) Close() error {
	var err1, err2 error
	if dc.gzipReader != nil {
		err1 = dc.gzipReader.Close()
	}
	if dc.bodyCloser != nil {
		err2 = dc.bodyCloser.Close()
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// GzipRequestDecompress transparently inflates gzip-encoded request bodies.
func GzipRequestDecompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		encoding := strings.ToLower(ctx.GetHeader("Content-Encoding"))
		if strings.Contains(encoding, "gzip") {
			gr, err := gzip.NewReader(ctx.Request.Body)
			if err != nil {
				abortWithError(ctx, errors.ErrInvalidGzipRequest)
				return
			}

			ctx.Request.Body = &dualCloser{
				Reader:     gr,
				gzipReader: gr,
				bodyCloser: ctx.Request.Body,
			}

			ctx.Request.Header.Del("Content-Encoding")
			ctx.Request.Header.Del("Content-Length")
		}
		ctx.Next()
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gw *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gw.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.gw.Write([]byte(s))
}

// GzipResponseCompress compresses responses for clients that accept gzip.
// Every body this service writes is JSON, so no content-type sniffing is done.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead {
			ctx.Next()
			return
		}

		acceptEnc := strings.ToLower(ctx.GetHeader("Accept-Encoding"))
		if !strings.Contains(acceptEnc, "gzip") {
			ctx.Next()
			return
		}

		ctx.Header("Content-Encoding", "gzip")
		ctx.Header("Vary", "Accept-Encoding")

		gw := gzip.NewWriter(ctx.Writer)
		ctx.Writer = &gzipResponseWriter{ResponseWriter: ctx.Writer, gw: gw}

		defer func() {
			if err := gw.Close(); err != nil {
				_ = ctx.Error(errors.ErrGzipCompressionFailed)
			}
			ctx.Header("Content-Length", "")
		}()

		ctx.Next()
	}
}
