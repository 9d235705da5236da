package fieldspec

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrichtable/internal/model"
)

// Querier is the Notion API surface the loader uses.
type Querier interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// notionQuerier wraps *notionapi.Client, throttled to Notion's 3 req/s limit.
type notionQuerier struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
}

// NewNotionQuerier creates a Querier with the given integration token.
func NewNotionQuerier(token string) Querier {
	return &notionQuerier{
		inner:   notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
	}
}

func (q *notionQuerier) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fieldspec: rate limit")
	}
	resp, err := q.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	if err != nil {
		return nil, eris.Wrapf(err, "fieldspec: query database %s", dbID)
	}
	return resp, nil
}

// LoadNotion queries a Notion field-definition database for all Active
// entries. Expected properties: Name (title), DisplayName (rich_text),
// Type (select), Status (status).
func LoadNotion(ctx context.Context, client Querier, dbID string) ([]model.Field, error) {
	req := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: "Active",
			},
		},
	}

	var fields []model.Field
	for {
		resp, err := client.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "fieldspec: query notion database")
		}
		for _, p := range resp.Results {
			f, err := parseFieldPage(p)
			if err != nil {
				zap.L().Warn("fieldspec: skipping malformed field page",
					zap.String("page_id", string(p.ID)),
					zap.Error(err),
				)
				continue
			}
			fields = append(fields, f)
		}
		if !resp.HasMore {
			break
		}
		req.StartCursor = resp.NextCursor
	}

	return normalize(fields)
}

func parseFieldPage(p notionapi.Page) (model.Field, error) {
	var f model.Field

	if prop, ok := p.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			f.Name = plainText(tp.Title)
		}
	}
	if f.Name == "" {
		return f, eris.New("fieldspec: page has no Name title")
	}

	if prop, ok := p.Properties["DisplayName"]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			f.DisplayName = plainText(rt.RichText)
		}
	}

	if prop, ok := p.Properties["Type"]; ok {
		if sel, ok := prop.(*notionapi.SelectProperty); ok {
			f.Type = model.FieldType(sel.Select.Name)
		}
	}

	return f, nil
}

func plainText(rts []notionapi.RichText) string {
	out := ""
	for _, rt := range rts {
		out += rt.PlainText
	}
	return out
}
