package notification

import (
	"bytes"
	"encoding/json"
)

// Page is one page of notifications from the REST API. The API answers either
// with a paginated envelope or with a bare array; both decode into Page.
type Page struct {
	Content       []Notification `json:"content"`
	TotalElements int64          `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
	Number        int            `json:"number"`
	Size          int            `json:"size"`
}

// envelope avoids recursing into Page.UnmarshalJSON
type envelope Page

func (p *Page) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []Notification
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*p = Page{
			Content:       items,
			TotalElements: int64(len(items)),
			TotalPages:    1,
			Size:          len(items),
		}
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*p = Page(env)
	if p.Content == nil {
		p.Content = []Notification{}
	}
	return nil
}
