package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// Domain

// SubjectID is the authenticated farmer the operation acts for.
func SubjectID(v string) zap.Field { return zap.String("subject_id", v) }

// ClientID is the registered third-party service.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// RequestID is the public id of an authorization request.
func RequestID(v string) zap.Field { return zap.String("auth_request_id", v) }

func Scopes(v []string) zap.Field { return zap.Strings("scopes", v) }

// System

func Op(v string) zap.Field { return zap.String("op", v) }

func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }
