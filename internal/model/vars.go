package model

import "github.com/zeromicro/go-zero/core/stores/sqlx"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = sqlx.ErrNotFound
