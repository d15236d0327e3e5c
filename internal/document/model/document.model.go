package model

import "time"

const (
	KindPDF  = "pdf"
	KindText = "text"

	DefaultTitle = "Untitled Document"

	// PageSeparator joins the extracted pages of a PDF in Content.
	PageSeparator = "\f"
)

type Document struct {
	ID             string
	OwnerID        string
	Title          string
	Kind           string
	Filename       string
	FileKey        string
	Content        string
	Size           int64
	Version        int64
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DocumentInfo is the list entry shown in the document library.
type DocumentInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Filename  string    `json:"filename,omitempty"`
	Date      string    `json:"date"`
	Size      int64     `json:"size"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DocumentResponse struct {
	DocumentInfo
	Content string `json:"content"`
}

func (d *Document) Info() DocumentInfo {
	return DocumentInfo{
		ID:        d.ID,
		Title:     d.Title,
		Kind:      d.Kind,
		Filename:  d.Filename,
		Date:      d.CreatedAt.Format("2006-01-02"),
		Size:      d.Size,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (d *Document) Response() DocumentResponse {
	return DocumentResponse{DocumentInfo: d.Info(), Content: d.Content}
}

type CreateDocRequest struct {
	Title string `json:"title"`
}

type SaveDocRequest struct {
	Content *string `json:"content"`
}

type ImproveRequest struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

type ImproveResponse struct {
	Text string `json:"text"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}
