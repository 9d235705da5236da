package fieldspec

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrichtable/internal/model"
)

type mockQuerier struct {
	mock.Mock
}

func (m *mockQuerier) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func fieldPage(id, name, displayName, fieldType string) notionapi.Page {
	props := notionapi.Properties{
		"Name": &notionapi.TitleProperty{
			Title: []notionapi.RichText{{PlainText: name}},
		},
	}
	if displayName != "" {
		props["DisplayName"] = &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: displayName}},
		}
	}
	if fieldType != "" {
		props["Type"] = &notionapi.SelectProperty{
			Select: notionapi.Option{Name: fieldType},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func TestLoadNotion_SinglePage(t *testing.T) {
	mq := new(mockQuerier)
	ctx := context.Background()

	mq.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && pf.Property == "Status" && pf.Status != nil && pf.Status.Equals == "Active"
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{
			fieldPage("p1", "company_size", "Company Size", "string"),
			fieldPage("p2", "is_b2b", "", "boolean"),
		},
		HasMore: false,
	}, nil).Once()

	fields, err := LoadNotion(ctx, mq, "db-1")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, model.Field{Name: "company_size", DisplayName: "Company Size", Type: model.FieldTypeString}, fields[0])
	assert.Equal(t, "is_b2b", fields[1].DisplayName)
	assert.Equal(t, model.FieldTypeBoolean, fields[1].Type)
	mq.AssertExpectations(t)
}

func TestLoadNotion_Paginated(t *testing.T) {
	mq := new(mockQuerier)
	ctx := context.Background()

	mq.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{fieldPage("p1", "industry", "Industry", "string")},
		HasMore:    true,
		NextCursor: notionapi.Cursor("cursor-abc"),
	}, nil).Once()

	mq.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == notionapi.Cursor("cursor-abc")
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{fieldPage("p2", "products", "Products", "array")},
		HasMore: false,
	}, nil).Once()

	fields, err := LoadNotion(ctx, mq, "db-1")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "industry", fields[0].Name)
	assert.Equal(t, "products", fields[1].Name)
	mq.AssertExpectations(t)
}

func TestLoadNotion_SkipsMalformedPages(t *testing.T) {
	mq := new(mockQuerier)
	ctx := context.Background()

	noName := notionapi.Page{ID: "p-bad", Properties: notionapi.Properties{}}
	mq.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{
			noName,
			fieldPage("p1", "industry", "Industry", "string"),
		},
		HasMore: false,
	}, nil).Once()

	fields, err := LoadNotion(ctx, mq, "db-1")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "industry", fields[0].Name)
	mq.AssertExpectations(t)
}

func TestLoadNotion_QueryError(t *testing.T) {
	mq := new(mockQuerier)
	ctx := context.Background()

	mq.On("QueryDatabase", ctx, "db-1", mock.Anything).
		Return(nil, eris.New("unauthorized")).Once()

	_, err := LoadNotion(ctx, mq, "db-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query notion database")
	mq.AssertExpectations(t)
}

func TestLoadNotion_NoActiveFields(t *testing.T) {
	mq := new(mockQuerier)
	ctx := context.Background()

	mq.On("QueryDatabase", ctx, "db-1", mock.Anything).
		Return(&notionapi.DatabaseQueryResponse{HasMore: false}, nil).Once()

	_, err := LoadNotion(ctx, mq, "db-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fields defined")
	mq.AssertExpectations(t)
}
