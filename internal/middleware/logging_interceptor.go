package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader is echoed back on every HTTP response.
const RequestIDHeader = "X-Request-Id"

// HTTPObserver records per-request metrics.
type HTTPObserver interface {
	ObserveHTTP(route, method, code string, d time.Duration)
}

// RequestLogger logs every HTTP request with timing and status. Server errors
// are logged at error level, everything else at info.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		c.Next()

		code := c.Writer.Status()
		logLevel := zapcore.InfoLevel
		if code >= 500 {
			logLevel = zapcore.ErrorLevel
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", requestID),
			zap.Duration("duration", time.Since(start)),
			zap.Int("status", code),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Check(logLevel, "http request").Write(fields...)
	}
}

// RequestMetrics reports each request under its route template so ids do
// not explode label cardinality.
func RequestMetrics(obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.ObserveHTTP(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// UnaryLoggingInterceptor logs unary RPC calls with timing and errors
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logRPC(ctx, logger, "unary RPC", info.FullMethod, start, err)
		return resp, err
	}
}

// StreamLoggingInterceptor logs streaming RPC calls, such as health watches,
// once they end.
func StreamLoggingInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		err := handler(srv, ss)
		logRPC(ss.Context(), logger, "stream RPC", info.FullMethod, start, err)
		return err
	}
}

func logRPC(ctx context.Context, logger *zap.Logger, msg string, method string, start time.Time, err error) {
	code := codes.OK
	if err != nil {
		code = status.Code(err)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	requestID := ""
	if ids := md.Get("x-request-id"); len(ids) > 0 {
		requestID = ids[0]
	}

	logLevel := zapcore.InfoLevel
	if err != nil {
		logLevel = zapcore.ErrorLevel
	}

	logger.Check(logLevel, msg).Write(
		zap.String("method", method),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
		zap.String("code", code.String()),
		zap.Error(err),
	)
}
