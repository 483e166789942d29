package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// withUserContext is the shared caller-identity argument carried by every
// tool except authenticate.
func withUserContext() mcp.ToolOption {
	return mcp.WithObject("user_context",
		mcp.Required(),
		mcp.Description("Caller identity: {user_id, session_id} from authenticate"),
	)
}

// createAuthenticateTool returns the authenticate tool definition
func createAuthenticateTool() mcp.Tool {
	return mcp.NewTool("authenticate",
		mcp.WithDescription("Establish a session. Single-user mode binds the configured default user; multi-user mode requires user_id"),
		mcp.WithString("user_id",
			mcp.Description("User to authenticate as (required in multi-user mode)"),
		),
		mcp.WithArray("scopes",
			mcp.WithStringItems(),
			mcp.Description("Requested Gmail scopes (informational)"),
		),
	)
}

// createListEmailsTool returns the list_emails tool definition
func createListEmailsTool() mcp.Tool {
	return mcp.NewTool("list_emails",
		mcp.WithDescription("List indexed emails with filters, newest first"),
		withUserContext(),
		mcp.WithString("category",
			mcp.Description("Priority filter: HIGH, MEDIUM or LOW"),
		),
		mcp.WithNumber("year",
			mcp.Description("Restrict to one year"),
		),
		mcp.WithBoolean("archived",
			mcp.Description("Filter by archived state"),
		),
		mcp.WithNumber("size_min",
			mcp.Description("Minimum size in bytes"),
		),
		mcp.WithNumber("size_max",
			mcp.Description("Maximum size in bytes"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 50)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Pagination offset"),
		),
	)
}

// createSearchEmailsTool returns the search_emails tool definition
func createSearchEmailsTool() mcp.Tool {
	return mcp.NewTool("search_emails",
		mcp.WithDescription("Search indexed emails by text and structured criteria"),
		withUserContext(),
		mcp.WithString("query",
			mcp.Description("Substring match over subject and snippet"),
		),
		mcp.WithString("category",
			mcp.Description("Priority filter: HIGH, MEDIUM or LOW"),
		),
		mcp.WithNumber("year_from",
			mcp.Description("Start of year range (inclusive)"),
		),
		mcp.WithNumber("year_to",
			mcp.Description("End of year range (inclusive)"),
		),
		mcp.WithString("sender",
			mcp.Description("Substring match over sender"),
		),
		mcp.WithBoolean("has_attachments",
			mcp.Description("Filter by attachment presence"),
		),
		mcp.WithBoolean("archived",
			mcp.Description("Filter by archived state"),
		),
		mcp.WithNumber("size_min",
			mcp.Description("Minimum size in bytes"),
		),
		mcp.WithNumber("size_max",
			mcp.Description("Maximum size in bytes"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 50)"),
		),
	)
}

// createGetEmailTool returns the get_email tool definition
func createGetEmailTool() mcp.Tool {
	return mcp.NewTool("get_email",
		mcp.WithDescription("Fetch one indexed email by id, including its enrichment"),
		withUserContext(),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Email id"),
		),
	)
}

// createSyncEmailsTool returns the sync_emails tool definition
func createSyncEmailsTool() mcp.Tool {
	return mcp.NewTool("sync_emails",
		mcp.WithDescription("Fetch message metadata from Gmail into the local index"),
		withUserContext(),
		mcp.WithString("query",
			mcp.Description("Gmail search query (e.g. 'in:inbox older_than:1y')"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Max messages to fetch (default: configured batch size)"),
		),
	)
}

// createCategorizeEmailsTool returns the categorize_emails tool definition
func createCategorizeEmailsTool() mcp.Tool {
	return mcp.NewTool("categorize_emails",
		mcp.WithDescription("Submit an async categorization job; poll get_job_status with the returned job_id"),
		withUserContext(),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Re-evaluate already-categorized emails"),
		),
		mcp.WithNumber("year",
			mcp.Description("Restrict to one year"),
		),
	)
}

// createGetEmailStatsTool returns the get_email_stats tool definition
func createGetEmailStatsTool() mcp.Tool {
	return mcp.NewTool("get_email_stats",
		mcp.WithDescription("Aggregate counts and sizes over the email index"),
		withUserContext(),
		mcp.WithString("group_by",
			mcp.Description("Grouping: year, category, size, archived, sender or importance (all/empty for totals)"),
		),
	)
}

// createArchiveEmailsTool returns the archive_emails tool definition
func createArchiveEmailsTool() mcp.Tool {
	return mcp.NewTool("archive_emails",
		mcp.WithDescription("Archive emails matching criteria, via Gmail or a local export file"),
		withUserContext(),
		mcp.WithString("category",
			mcp.Description("Priority filter: HIGH, MEDIUM or LOW"),
		),
		mcp.WithNumber("year",
			mcp.Description("Restrict to one year"),
		),
		mcp.WithString("sender",
			mcp.Description("Substring match over sender"),
		),
		mcp.WithNumber("size_min",
			mcp.Description("Minimum size in bytes"),
		),
		mcp.WithString("method",
			mcp.Description("Archive method: gmail (remove from inbox) or export (local JSON file). Default: gmail"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Preview matches without archiving"),
		),
	)
}

// createDeleteEmailsTool returns the delete_emails tool definition
func createDeleteEmailsTool() mcp.Tool {
	return mcp.NewTool("delete_emails",
		mcp.WithDescription("Move matching emails to Gmail trash. Requires confirm=true or dry_run=true"),
		withUserContext(),
		mcp.WithString("category",
			mcp.Description("Priority filter: HIGH, MEDIUM or LOW"),
		),
		mcp.WithNumber("year",
			mcp.Description("Restrict to one year"),
		),
		mcp.WithString("sender",
			mcp.Description("Substring match over sender"),
		),
		mcp.WithBoolean("confirm",
			mcp.Description("Confirm the destructive operation"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Preview matches without deleting"),
		),
	)
}

// createGetJobStatusTool returns the get_job_status tool definition
func createGetJobStatusTool() mcp.Tool {
	return mcp.NewTool("get_job_status",
		mcp.WithDescription("Fetch the status and results of one async job"),
		withUserContext(),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Job id returned by an async tool"),
		),
	)
}

// createListJobsTool returns the list_jobs tool definition
func createListJobsTool() mcp.Tool {
	return mcp.NewTool("list_jobs",
		mcp.WithDescription("List the caller's jobs, newest first"),
		withUserContext(),
		mcp.WithString("job_type",
			mcp.Description("Filter: categorization or cleanup"),
		),
		mcp.WithString("status",
			mcp.Description("Filter: PENDING, IN_PROGRESS, COMPLETED or FAILED"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Pagination offset"),
		),
	)
}

// createCreateCleanupPolicyTool returns the create_cleanup_policy tool definition
func createCreateCleanupPolicyTool() mcp.Tool {
	return mcp.NewTool("create_cleanup_policy",
		mcp.WithDescription("Create a retention policy. The safety block (max_emails_per_run) is mandatory"),
		withUserContext(),
		mcp.WithObject("policy",
			mcp.Required(),
			mcp.Description("Policy definition: {name, enabled, priority, criteria, action, method, safety}"),
		),
	)
}

// createUpdateCleanupPolicyTool returns the update_cleanup_policy tool definition
func createUpdateCleanupPolicyTool() mcp.Tool {
	return mcp.NewTool("update_cleanup_policy",
		mcp.WithDescription("Merge updates into an existing retention policy"),
		withUserContext(),
		mcp.WithString("policy_id",
			mcp.Required(),
			mcp.Description("Policy to update"),
		),
		mcp.WithObject("updates",
			mcp.Required(),
			mcp.Description("Partial policy fields to merge"),
		),
	)
}

// createListCleanupPoliciesTool returns the list_cleanup_policies tool definition
func createListCleanupPoliciesTool() mcp.Tool {
	return mcp.NewTool("list_cleanup_policies",
		mcp.WithDescription("List retention policies ordered by priority"),
		withUserContext(),
	)
}

// createDeleteCleanupPolicyTool returns the delete_cleanup_policy tool definition
func createDeleteCleanupPolicyTool() mcp.Tool {
	return mcp.NewTool("delete_cleanup_policy",
		mcp.WithDescription("Delete a retention policy and its schedules"),
		withUserContext(),
		mcp.WithString("policy_id",
			mcp.Required(),
			mcp.Description("Policy to delete"),
		),
	)
}

// createTriggerCleanupTool returns the trigger_cleanup tool definition
func createTriggerCleanupTool() mcp.Tool {
	return mcp.NewTool("trigger_cleanup",
		mcp.WithDescription("Run a retention policy. Dry runs preview inline; real runs submit an async job"),
		withUserContext(),
		mcp.WithString("policy_id",
			mcp.Required(),
			mcp.Description("Policy to execute"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Preview affected emails without modifying state"),
		),
		mcp.WithNumber("max_emails",
			mcp.Description("Cap below the policy's per-run limit"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Satisfy the policy's require_confirmation gate"),
		),
	)
}

// createGetCleanupRecommendationsTool returns the get_cleanup_recommendations tool definition
func createGetCleanupRecommendationsTool() mcp.Tool {
	return mcp.NewTool("get_cleanup_recommendations",
		mcp.WithDescription("Propose retention policy templates from the current email distribution"),
		withUserContext(),
	)
}

// createCreateCleanupScheduleTool returns the create_cleanup_schedule tool definition
func createCreateCleanupScheduleTool() mcp.Tool {
	return mcp.NewTool("create_cleanup_schedule",
		mcp.WithDescription("Schedule a policy: daily HH:MM, weekly day:HH:MM, monthly DD:HH:MM, interval ms, or raw cron"),
		withUserContext(),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Schedule kind: daily, weekly, monthly, interval or cron"),
		),
		mcp.WithString("expression",
			mcp.Required(),
			mcp.Description("Expression in the kind's format"),
		),
		mcp.WithString("policy_id",
			mcp.Required(),
			mcp.Description("Policy to fire"),
		),
		mcp.WithBoolean("enabled",
			mcp.Description("Start firing immediately (default: true)"),
		),
	)
}

// createSaveSearchTool returns the save_search tool definition
func createSaveSearchTool() mcp.Tool {
	return mcp.NewTool("save_search",
		mcp.WithDescription("Persist a named search for later reuse"),
		withUserContext(),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Search name"),
		),
		mcp.WithObject("criteria",
			mcp.Required(),
			mcp.Description("Search criteria, same shape as search_emails arguments"),
		),
	)
}

// createListSavedSearchesTool returns the list_saved_searches tool definition
func createListSavedSearchesTool() mcp.Tool {
	return mcp.NewTool("list_saved_searches",
		mcp.WithDescription("List saved searches, newest first"),
		withUserContext(),
	)
}

// createListArchiveRecordsTool returns the list_archive_records tool definition
func createListArchiveRecordsTool() mcp.Tool {
	return mcp.NewTool("list_archive_records",
		mcp.WithDescription("List past archive runs for audit"),
		withUserContext(),
		mcp.WithNumber("limit",
			mcp.Description("Max records (default: 20)"),
		),
	)
}

// createSaveArchiveRuleTool returns the save_archive_rule tool definition
func createSaveArchiveRuleTool() mcp.Tool {
	return mcp.NewTool("save_archive_rule",
		mcp.WithDescription("Persist a reusable archive criteria set"),
		withUserContext(),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Rule name"),
		),
		mcp.WithObject("criteria",
			mcp.Required(),
			mcp.Description("Email criteria, same shape as search_emails arguments"),
		),
		mcp.WithString("method",
			mcp.Required(),
			mcp.Description("Archive method: gmail or export"),
		),
		mcp.WithBoolean("enabled",
			mcp.Description("Whether the rule is active (default: true)"),
		),
	)
}

// createListArchiveRulesTool returns the list_archive_rules tool definition
func createListArchiveRulesTool() mcp.Tool {
	return mcp.NewTool("list_archive_rules",
		mcp.WithDescription("List saved archive rules"),
		withUserContext(),
	)
}
