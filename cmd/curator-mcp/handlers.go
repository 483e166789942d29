package main

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/services/tools"
)

// userContextFrom extracts the caller identity argument. Validation happens
// in the service layer; an absent block simply fails session lookup there.
func userContextFrom(request mcp.CallToolRequest) models.UserContext {
	args := request.GetArguments()
	raw, _ := args["user_context"].(map[string]interface{})

	userCtx := models.UserContext{}
	if raw != nil {
		userCtx.UserID, _ = raw["user_id"].(string)
		userCtx.SessionID, _ = raw["session_id"].(string)
	}
	return userCtx
}

// jsonResult renders a payload as canonical JSON text content.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("internal_error: failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult renders a typed protocol error. Untyped errors map to
// internal_error before leaving the process.
func errorResult(logger arbor.ILogger, toolName string, err error) (*mcp.CallToolResult, error) {
	pe := models.MapError(err)
	if pe.Code == models.ErrCodeInternal {
		logger.Error().Err(err).Str("tool", toolName).Msg("Tool handler failed")
	}

	payload, encodeErr := json.Marshal(map[string]string{
		"code":    string(pe.Code),
		"message": pe.Message,
	})
	if encodeErr != nil {
		return mcp.NewToolResultError(pe.Error()), nil
	}
	return mcp.NewToolResultError(string(payload)), nil
}

// hasArg reports whether an optional argument was supplied at all, for
// tri-state filters like archived.
func hasArg(request mcp.CallToolRequest, key string) bool {
	_, ok := request.GetArguments()[key]
	return ok
}

func handleAuthenticate(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID := request.GetString("user_id", "")
		result, err := svc.Authenticate(ctx, userID)
		if err != nil {
			return errorResult(logger, "authenticate", err)
		}
		return jsonResult(result)
	}
}

func handleListEmails(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		criteria := &models.EmailCriteria{
			Category: request.GetString("category", ""),
			Year:     request.GetInt("year", 0),
			SizeMin:  int64(request.GetInt("size_min", 0)),
			SizeMax:  int64(request.GetInt("size_max", 0)),
			Limit:    request.GetInt("limit", 50),
			Offset:   request.GetInt("offset", 0),
		}
		if hasArg(request, "archived") {
			archived := request.GetBool("archived", false)
			criteria.Archived = &archived
		}

		page, err := svc.ListEmails(userContextFrom(request), criteria)
		if err != nil {
			return errorResult(logger, "list_emails", err)
		}
		return jsonResult(page)
	}
}

// searchCriteriaFrom decodes the search_emails argument set.
func searchCriteriaFrom(request mcp.CallToolRequest) *models.EmailCriteria {
	criteria := &models.EmailCriteria{
		Query:    request.GetString("query", ""),
		Category: request.GetString("category", ""),
		YearFrom: request.GetInt("year_from", 0),
		YearTo:   request.GetInt("year_to", 0),
		Sender:   request.GetString("sender", ""),
		SizeMin:  int64(request.GetInt("size_min", 0)),
		SizeMax:  int64(request.GetInt("size_max", 0)),
		Limit:    request.GetInt("limit", 50),
	}
	if hasArg(request, "has_attachments") {
		hasAttachments := request.GetBool("has_attachments", false)
		criteria.HasAttachments = &hasAttachments
	}
	if hasArg(request, "archived") {
		archived := request.GetBool("archived", false)
		criteria.Archived = &archived
	}
	return criteria
}

func handleSearchEmails(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		page, err := svc.SearchEmails(userContextFrom(request), searchCriteriaFrom(request))
		if err != nil {
			return errorResult(logger, "search_emails", err)
		}
		return jsonResult(page)
	}
}

func handleGetEmail(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil || id == "" {
			return errorResult(logger, "get_email", models.NewInvalidParams("id parameter is required"))
		}
		email, err := svc.GetEmail(userContextFrom(request), id)
		if err != nil {
			return errorResult(logger, "get_email", err)
		}
		return jsonResult(email)
	}
}

func handleSyncEmails(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := svc.SyncEmails(ctx, userContextFrom(request),
			request.GetString("query", ""),
			int64(request.GetInt("max_results", 0)),
		)
		if err != nil {
			return errorResult(logger, "sync_emails", err)
		}
		return jsonResult(result)
	}
}

func handleCategorizeEmails(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := svc.CategorizeEmails(userContextFrom(request),
			request.GetBool("force_refresh", false),
			request.GetInt("year", 0),
		)
		if err != nil {
			return errorResult(logger, "categorize_emails", err)
		}
		return jsonResult(result)
	}
}

func handleGetEmailStats(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := svc.GetEmailStats(userContextFrom(request), request.GetString("group_by", ""))
		if err != nil {
			return errorResult(logger, "get_email_stats", err)
		}
		return jsonResult(stats)
	}
}

func handleArchiveEmails(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		criteria := &models.EmailCriteria{
			Category: request.GetString("category", ""),
			Year:     request.GetInt("year", 0),
			Sender:   request.GetString("sender", ""),
			SizeMin:  int64(request.GetInt("size_min", 0)),
		}
		method := models.CleanupMethod(request.GetString("method", string(models.CleanupMethodGmail)))

		result, err := svc.ArchiveEmails(ctx, userContextFrom(request), criteria, method,
			request.GetBool("dry_run", false))
		if err != nil {
			return errorResult(logger, "archive_emails", err)
		}
		return jsonResult(result)
	}
}

func handleDeleteEmails(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		criteria := &models.EmailCriteria{
			Category: request.GetString("category", ""),
			Year:     request.GetInt("year", 0),
			Sender:   request.GetString("sender", ""),
		}

		result, err := svc.DeleteEmails(ctx, userContextFrom(request), criteria,
			request.GetBool("confirm", false),
			request.GetBool("dry_run", false),
		)
		if err != nil {
			return errorResult(logger, "delete_emails", err)
		}
		return jsonResult(result)
	}
}

func handleGetJobStatus(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("id")
		if err != nil || jobID == "" {
			return errorResult(logger, "get_job_status", models.NewInvalidParams("id parameter is required"))
		}

		job, err := svc.GetJobStatus(userContextFrom(request), jobID)
		if err != nil {
			return errorResult(logger, "get_job_status", err)
		}
		return jsonResult(job)
	}
}

func handleListJobs(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := &models.JobFilter{
			JobType: models.JobType(request.GetString("job_type", "")),
			Status:  models.JobStatus(request.GetString("status", "")),
			Limit:   request.GetInt("limit", 20),
			Offset:  request.GetInt("offset", 0),
		}

		jobs, total, err := svc.ListJobs(userContextFrom(request), filter)
		if err != nil {
			return errorResult(logger, "list_jobs", err)
		}
		return jsonResult(map[string]interface{}{"jobs": jobs, "total": total})
	}
}

func handleCreateCleanupPolicy(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, ok := request.GetArguments()["policy"]
		if !ok {
			return errorResult(logger, "create_cleanup_policy", models.NewInvalidParams("policy parameter is required"))
		}
		policy, err := decodeArg[models.CleanupPolicy](raw)
		if err != nil {
			return errorResult(logger, "create_cleanup_policy", models.NewInvalidParams("invalid policy: %v", err))
		}

		created, err := svc.CreateCleanupPolicy(userContextFrom(request), policy)
		if err != nil {
			return errorResult(logger, "create_cleanup_policy", err)
		}
		return jsonResult(created)
	}
}

func handleUpdateCleanupPolicy(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		policyID, err := request.RequireString("policy_id")
		if err != nil || policyID == "" {
			return errorResult(logger, "update_cleanup_policy", models.NewInvalidParams("policy_id parameter is required"))
		}
		raw, ok := request.GetArguments()["updates"]
		if !ok {
			return errorResult(logger, "update_cleanup_policy", models.NewInvalidParams("updates parameter is required"))
		}
		patch, err := json.Marshal(raw)
		if err != nil {
			return errorResult(logger, "update_cleanup_policy", models.NewInvalidParams("invalid updates: %v", err))
		}

		updated, err := svc.UpdateCleanupPolicy(userContextFrom(request), policyID, patch)
		if err != nil {
			return errorResult(logger, "update_cleanup_policy", err)
		}
		return jsonResult(updated)
	}
}

func handleListCleanupPolicies(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		policies, err := svc.ListCleanupPolicies(userContextFrom(request))
		if err != nil {
			return errorResult(logger, "list_cleanup_policies", err)
		}
		return jsonResult(map[string]interface{}{"policies": policies})
	}
}

func handleDeleteCleanupPolicy(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		policyID, err := request.RequireString("policy_id")
		if err != nil || policyID == "" {
			return errorResult(logger, "delete_cleanup_policy", models.NewInvalidParams("policy_id parameter is required"))
		}

		if err := svc.DeleteCleanupPolicy(userContextFrom(request), policyID); err != nil {
			return errorResult(logger, "delete_cleanup_policy", err)
		}
		return jsonResult(map[string]string{"deleted": policyID})
	}
}

func handleTriggerCleanup(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		policyID, err := request.RequireString("policy_id")
		if err != nil || policyID == "" {
			return errorResult(logger, "trigger_cleanup", models.NewInvalidParams("policy_id parameter is required"))
		}

		result, err := svc.TriggerCleanup(userContextFrom(request), &models.CleanupParams{
			PolicyID:  policyID,
			DryRun:    request.GetBool("dry_run", false),
			MaxEmails: request.GetInt("max_emails", 0),
			Force:     request.GetBool("force", false),
		})
		if err != nil {
			return errorResult(logger, "trigger_cleanup", err)
		}
		return jsonResult(result)
	}
}

func handleGetCleanupRecommendations(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		recommendations, err := svc.GetCleanupRecommendations(userContextFrom(request))
		if err != nil {
			return errorResult(logger, "get_cleanup_recommendations", err)
		}
		return jsonResult(map[string]interface{}{"recommendations": recommendations})
	}
}

func handleCreateCleanupSchedule(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schedule := &models.CleanupSchedule{
			Kind:       models.ScheduleKind(request.GetString("type", "")),
			Expression: request.GetString("expression", ""),
			PolicyID:   request.GetString("policy_id", ""),
			Enabled:    request.GetBool("enabled", true),
		}

		created, err := svc.CreateCleanupSchedule(userContextFrom(request), schedule)
		if err != nil {
			return errorResult(logger, "create_cleanup_schedule", err)
		}
		return jsonResult(created)
	}
}

func handleSaveSearch(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil || name == "" {
			return errorResult(logger, "save_search", models.NewInvalidParams("name parameter is required"))
		}
		raw, ok := request.GetArguments()["criteria"]
		if !ok {
			return errorResult(logger, "save_search", models.NewInvalidParams("criteria parameter is required"))
		}
		criteria, err := decodeArg[models.EmailCriteria](raw)
		if err != nil {
			return errorResult(logger, "save_search", models.NewInvalidParams("invalid criteria: %v", err))
		}

		search, err := svc.SaveSearch(userContextFrom(request), name, criteria)
		if err != nil {
			return errorResult(logger, "save_search", err)
		}
		return jsonResult(search)
	}
}

func handleListSavedSearches(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		searches, err := svc.ListSavedSearches(userContextFrom(request))
		if err != nil {
			return errorResult(logger, "list_saved_searches", err)
		}
		return jsonResult(map[string]interface{}{"searches": searches})
	}
}

func handleSaveArchiveRule(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil || name == "" {
			return errorResult(logger, "save_archive_rule", models.NewInvalidParams("name parameter is required"))
		}
		raw, ok := request.GetArguments()["criteria"]
		if !ok {
			return errorResult(logger, "save_archive_rule", models.NewInvalidParams("criteria parameter is required"))
		}
		criteria, err := decodeArg[models.EmailCriteria](raw)
		if err != nil {
			return errorResult(logger, "save_archive_rule", models.NewInvalidParams("invalid criteria: %v", err))
		}

		rule := &models.ArchiveRule{
			Name:     name,
			Criteria: *criteria,
			Method:   models.CleanupMethod(request.GetString("method", "")),
			Enabled:  request.GetBool("enabled", true),
		}
		saved, err := svc.SaveArchiveRule(userContextFrom(request), rule)
		if err != nil {
			return errorResult(logger, "save_archive_rule", err)
		}
		return jsonResult(saved)
	}
}

func handleListArchiveRules(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rules, err := svc.ListArchiveRules(userContextFrom(request))
		if err != nil {
			return errorResult(logger, "list_archive_rules", err)
		}
		return jsonResult(map[string]interface{}{"rules": rules})
	}
}

func handleListArchiveRecords(svc *tools.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := svc.ListArchiveRecords(userContextFrom(request), request.GetInt("limit", 20))
		if err != nil {
			return errorResult(logger, "list_archive_records", err)
		}
		return jsonResult(map[string]interface{}{"records": records})
	}
}

// decodeArg round-trips an untyped argument through JSON into a typed
// struct.
func decodeArg[T any](raw interface{}) (*T, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
