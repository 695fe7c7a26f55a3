package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"pickup/internal/roster"
)

const defaultVersion = "2022-06-28"

// Client calls the Notion REST API. A nil client or empty token disables the
// integration; callers check Enabled before use.
type Client struct {
	BaseURL string
	Token   string
	Version string
	HTTP    *http.Client
}

// New creates a client with a conservative timeout.
func New(token string) *Client {
	return &Client{
		BaseURL: "https://api.notion.com",
		Token:   token,
		Version: defaultVersion,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Enabled reports whether the integration is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.Token != ""
}

// Page is a Notion page with the property shapes the roster uses.
type Page struct {
	ID         string              `json:"id"`
	Properties map[string]Property `json:"properties"`
}

// Property covers the property types present in the roster database.
type Property struct {
	Type        string         `json:"type,omitempty"`
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Checkbox    *bool          `json:"checkbox,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Number      *float64       `json:"number,omitempty"`
}

// RichText is one text run.
type RichText struct {
	PlainText string `json:"plain_text,omitempty"`
	Text      *Text  `json:"text,omitempty"`
}

// Text is the writable part of a rich-text run.
type Text struct {
	Content string `json:"content"`
}

// SelectOption is a select/multi-select value.
type SelectOption struct {
	Name string `json:"name"`
}

type queryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// QueryDatabase returns every page of the database, following pagination.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]Page, error) {
	var (
		pages  []Page
		cursor *string
	)
	for {
		body := map[string]any{"page_size": 100}
		if cursor != nil {
			body["start_cursor"] = *cursor
		}
		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, "/v1/databases/"+databaseID+"/query", body, &resp); err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// UpdateCheckbox sets one checkbox property on a page.
func (c *Client) UpdateCheckbox(ctx context.Context, pageID, property string, checked bool) error {
	body := map[string]any{
		"properties": map[string]any{
			property: map[string]any{"checkbox": checked},
		},
	}
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil)
}

// UpsertStudent creates or updates the page mirroring a student and returns
// its page id.
func (c *Client) UpsertStudent(ctx context.Context, databaseID string, st roster.Student) (string, error) {
	props := studentProperties(st)
	if st.NotionPageID != "" {
		err := c.do(ctx, http.MethodPatch, "/v1/pages/"+st.NotionPageID, map[string]any{"properties": props}, nil)
		return st.NotionPageID, err
	}
	body := map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": props,
	}
	var created Page
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// ArchivePage archives (soft-deletes) a page.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, map[string]any{"archived": true}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notion: encode request failed: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("notion: create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Notion-Version", c.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notion: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notion: %s %s failed (%d): %s", method, path, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("notion: decode response failed: %w", err)
		}
	}
	return nil
}

// Property names in the roster database.
const (
	PropName            = "이름"
	PropShortID         = "단축번호"
	PropClassDays       = "수업요일"
	PropClassTime       = "수업시간"
	PropArrivalTime     = "등원시간"
	PropDepartureTime   = "하원시간"
	PropArrivalLoc      = "등원위치"
	PropDepartureLoc    = "하원위치"
	PropArrivalStatus   = "등원완료"
	PropDepartureStatus = "하원완료"
)

// Property names in the class-info database.
const (
	PropSlotTitle     = "수업시간"
	PropSlotStart     = "시작시간"
	PropSlotEnd       = "종료시간"
	PropSlotLocations = "위치"
)

// StatusProperty maps a toggle kind to its checkbox property name.
func StatusProperty(kind roster.StatusKind) string {
	if kind == roster.KindDeparture {
		return PropDepartureStatus
	}
	return PropArrivalStatus
}

func studentProperties(st roster.Student) map[string]any {
	days := make([]map[string]string, 0, len(st.ClassDays))
	for _, d := range st.ClassDays {
		days = append(days, map[string]string{"name": d})
	}
	return map[string]any{
		PropName:            map[string]any{"title": []map[string]any{{"text": map[string]string{"content": st.Name}}}},
		PropShortID:         richTextProp(st.ShortID),
		PropClassDays:       map[string]any{"multi_select": days},
		PropClassTime:       richTextProp(st.ClassTime),
		PropArrivalTime:     richTextProp(st.ArrivalTime),
		PropDepartureTime:   richTextProp(st.DepartureTime),
		PropArrivalLoc:      richTextProp(st.ArrivalLocation),
		PropDepartureLoc:    richTextProp(st.DepartureLocation),
		PropArrivalStatus:   map[string]any{"checkbox": st.ArrivalStatus},
		PropDepartureStatus: map[string]any{"checkbox": st.DepartureStatus},
	}
}

func richTextProp(value string) map[string]any {
	return map[string]any{"rich_text": []map[string]any{{"text": map[string]string{"content": value}}}}
}

// StudentFromPage maps a roster database page onto a student record.
func StudentFromPage(p Page) roster.Student {
	st := roster.Student{NotionPageID: p.ID}
	st.Name = plainText(p.Properties[PropName].Title)
	st.ShortID = plainText(p.Properties[PropShortID].RichText)
	st.ClassTime = roster.NormalizeClassTime(plainText(p.Properties[PropClassTime].RichText))
	st.ArrivalTime = plainText(p.Properties[PropArrivalTime].RichText)
	st.DepartureTime = plainText(p.Properties[PropDepartureTime].RichText)
	st.ArrivalLocation = plainText(p.Properties[PropArrivalLoc].RichText)
	st.DepartureLocation = plainText(p.Properties[PropDepartureLoc].RichText)
	for _, opt := range p.Properties[PropClassDays].MultiSelect {
		st.ClassDays = append(st.ClassDays, opt.Name)
	}
	if cb := p.Properties[PropArrivalStatus].Checkbox; cb != nil {
		st.ArrivalStatus = *cb
	}
	if cb := p.Properties[PropDepartureStatus].Checkbox; cb != nil {
		st.DepartureStatus = *cb
	}
	return st
}

// ReplaceClassSlots rewrites the class-info database: every existing page is
// archived and one page per slot is created. The slot map is small (a handful
// of entries), so the wholesale rewrite stays cheap.
func (c *Client) ReplaceClassSlots(ctx context.Context, databaseID string, slots map[string]roster.ClassSlot) error {
	existing, err := c.QueryDatabase(ctx, databaseID)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if err := c.ArchivePage(ctx, p.ID); err != nil {
			return err
		}
	}
	for slot, cs := range slots {
		body := map[string]any{
			"parent": map[string]any{"database_id": databaseID},
			"properties": map[string]any{
				PropSlotTitle:     map[string]any{"title": []map[string]any{{"text": map[string]string{"content": slot}}}},
				PropSlotStart:     richTextProp(cs.StartTime),
				PropSlotEnd:       richTextProp(cs.EndTime),
				PropSlotLocations: richTextProp(formatLocations(cs.Locations)),
			},
		}
		if err := c.do(ctx, http.MethodPost, "/v1/pages", body, nil); err != nil {
			return err
		}
	}
	return nil
}

// formatLocations renders a locations map as "1:정문, 2:후문" in id order.
func formatLocations(locations map[int]string) string {
	ids := make([]int, 0, len(locations))
	for id := range locations {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id)+":"+locations[id])
	}
	return strings.Join(parts, ", ")
}

func plainText(runs []RichText) string {
	out := ""
	for _, r := range runs {
		if r.PlainText != "" {
			out += r.PlainText
			continue
		}
		if r.Text != nil {
			out += r.Text.Content
		}
	}
	return out
}
