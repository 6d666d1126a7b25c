package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 请求日志中间件（基于 Zap 结构化日志）
//
// quietPrefixes 下的成功请求降为 Debug 级别，避免 now-playing 之类的
// 高频轮询淹没访问日志；出错时仍按状态码记录。
func Logger(logger *zap.Logger, quietPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		level := zapcore.InfoLevel
		msg := "请求完成"
		switch {
		case statusCode >= 500:
			level, msg = zapcore.ErrorLevel, "请求处理失败"
		case statusCode >= 400:
			level, msg = zapcore.WarnLevel, "客户端错误"
		case hasPrefix(path, quietPrefixes):
			level = zapcore.DebugLevel
		}

		ce := logger.Check(level, msg)
		if ce == nil {
			return
		}

		fields := []zap.Field{
			zap.Int("status", statusCode),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", latency),
			zap.String("request_id", GetRequestID(c)),
		}
		if uid := c.GetString("user_id"); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		ce.Write(fields...)
	}
}
