// Package model provides data-structs and error kinds shared by the watermark pipeline and the job service
package model

import (
	"mime/multipart"
	"time"

	"github.com/google/uuid"
)

type (
	Status        string
	WatermarkType string
)

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

const (
	WMText  WatermarkType = "text"
	WMImage WatermarkType = "image"
)

var WatermarkTypeMap = map[WatermarkType]bool{
	WMText:  true,
	WMImage: true,
}

//---------------------

// Job - запись о задаче наложения водяного знака
type Job struct {
	UID           uuid.UUID     `json:"uid"`
	SourceKey     string        `json:"-"`
	WatermarkKey  string        `json:"-"`
	ResultKey     string        `json:"-"`
	SourceName    string        `json:"source_name"`
	WatermarkType WatermarkType `json:"watermark_type"`
	WatermarkText string        `json:"watermark_text,omitempty"`
	Effects       StringSlice   `json:"effects,omitempty"`
	Status        Status        `json:"status,omitempty"`
	ErrMsg        StringSlice   `json:"error,omitempty"`
	CreatedAt     *time.Time    `json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
}

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

type JobCreateData struct {
	WatermarkType   string
	WatermarkText   string
	Effects         []string
	OrigImg         multipart.File
	OrigName        string
	OrigContentType string
	OrigImgSize     int64
	WMImg           multipart.File
	WMContentType   string
	WMImgSize       int64
}
