// Package logger provides adapters for popular logger libraries to work with clusterdb's Logger interface.
//
// The adapters allow you to use your existing logger with clusterdb without writing boilerplate.
// Note that the standard library's slog.Logger already implements clusterdb.Logger directly.
//
// Example with zap:
//
//	import (
//	    "clusterdb"
//	    "clusterdb/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    users, err := clusterdb.NewTable("users", schema,
//	        clusterdb.WithLogger(logger.NewZap(zapLogger)))
//	    if err != nil {
//	        panic(err)
//	    }
//	    _ = users
//	}
package logger
