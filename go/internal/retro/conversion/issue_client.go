package conversion

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// CreateIssueProcedure is the Connect procedure of the issue tracker.
const CreateIssueProcedure = "/issues.v1.IssueService/CreateIssue"

// ConnectIssueClient creates issues over Connect. Messages are
// google.protobuf.Struct so no generated stubs are needed.
type ConnectIssueClient struct {
	client *connect.Client[structpb.Struct, structpb.Struct]
	token  string
}

var _ IssueCreator = (*ConnectIssueClient)(nil)

// NewConnectIssueClient points a client at baseURL. A non-empty token is sent
// as a bearer Authorization header.
func NewConnectIssueClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *ConnectIssueClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ConnectIssueClient{
		client: connect.NewClient[structpb.Struct, structpb.Struct](
			httpClient,
			strings.TrimRight(baseURL, "/")+CreateIssueProcedure,
			opts...,
		),
		token: token,
	}
}

// CreateIssue implements IssueCreator.
func (c *ConnectIssueClient) CreateIssue(ctx context.Context, req IssueRequest) (string, error) {
	fields := map[string]any{
		"title":       req.Title,
		"type":        req.Type,
		"priority":    req.Priority,
		"reporter_id": req.ReporterID,
		"project_id":  req.ProjectID.String(),
	}
	if req.AssigneeID != nil {
		fields["assignee_id"] = *req.AssigneeID
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return "", fmt.Errorf("failed to build issue request: %w", err)
	}

	connectReq := connect.NewRequest(msg)
	if c.token != "" {
		connectReq.Header().Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.CallUnary(ctx, connectReq)
	if err != nil {
		return "", fmt.Errorf("issue service call failed (%s): %w", connect.CodeOf(err), err)
	}

	id := resp.Msg.GetFields()["id"].GetStringValue()
	if id == "" {
		return "", fmt.Errorf("issue service returned no id")
	}
	return id, nil
}
