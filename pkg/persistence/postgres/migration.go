package postgres

// migrations returns the versioned schema migrations.
func migrations() map[int]string {
	return map[int]string{
		1: migrationV1,
	}
}

const migrationV1 = `
	CREATE TABLE IF NOT EXISTS workflow_instances (
		id TEXT PRIMARY KEY,
		definition_type TEXT NOT NULL,
		status TEXT NOT NULL,
		phase TEXT NOT NULL DEFAULT '',
		input JSONB,
		state JSONB,
		history_cursor INTEGER NOT NULL DEFAULT 0,
		signal_queue JSONB,
		waiting JSONB,
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
		completed_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_workflow_instances_status
		ON workflow_instances(status);

	CREATE TABLE IF NOT EXISTS workflow_timers (
		workflow_id TEXT PRIMARY KEY,
		fire_at TIMESTAMP WITH TIME ZONE NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_workflow_timers_fire_at
		ON workflow_timers(fire_at);

	CREATE TABLE IF NOT EXISTS activity_attempts (
		id TEXT NOT NULL,
		workflow_id TEXT NOT NULL,
		step_cursor INTEGER NOT NULL,
		activity_name TEXT NOT NULL,
		attempt_number INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		result JSONB,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP WITH TIME ZONE NOT NULL,
		finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
		PRIMARY KEY (workflow_id, step_cursor)
	);

	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		meeting_url TEXT NOT NULL DEFAULT '',
		scheduled_at TIMESTAMP WITH TIME ZONE,
		status TEXT NOT NULL,
		bot_id TEXT NOT NULL DEFAULT '',
		recording_url TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL DEFAULT '',
		should_record BOOLEAN NOT NULL DEFAULT FALSE,
		record_reason TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sequence_enrollments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		sequence_id TEXT NOT NULL,
		contact_id TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		current_step_number INTEGER NOT NULL DEFAULT 1,
		total_steps INTEGER NOT NULL DEFAULT 0,
		next_scheduled_at TIMESTAMP WITH TIME ZONE,
		last_outbound_at TIMESTAMP WITH TIME ZONE,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sequence_steps (
		id TEXT PRIMARY KEY,
		sequence_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		type TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		delay_days INTEGER NOT NULL DEFAULT 0,
		delay_hours INTEGER NOT NULL DEFAULT 0,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sequence_steps_sequence
		ON sequence_steps(sequence_id, number);

	CREATE TABLE IF NOT EXISTS enrollment_events (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL,
		step_number INTEGER NOT NULL,
		type TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_enrollment_events_enrollment
		ON enrollment_events(enrollment_id, created_at);

	CREATE TABLE IF NOT EXISTS linkedin_campaigns (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		sender_connected BOOLEAN NOT NULL DEFAULT FALSE,
		daily_limit INTEGER NOT NULL DEFAULT 0,
		window JSONB,
		steps JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS campaign_leads (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		status TEXT NOT NULL,
		current_step INTEGER NOT NULL DEFAULT 0,
		next_action_at TIMESTAMP WITH TIME ZONE,
		last_inbound_at TIMESTAMP WITH TIME ZONE,
		last_outbound_at TIMESTAMP WITH TIME ZONE,
		fields JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_campaign_leads_campaign
		ON campaign_leads(campaign_id, next_action_at);

	CREATE TABLE IF NOT EXISTS lead_actions (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lead_actions_lead
		ON lead_actions(lead_id, status);

	CREATE TABLE IF NOT EXISTS lead_messages (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL,
		inbound BOOLEAN NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		sent_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lead_messages_lead
		ON lead_messages(lead_id, sent_at);

	CREATE TABLE IF NOT EXISTS recording_policies (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		rule_type TEXT NOT NULL,
		keywords JSONB,
		UNIQUE (tenant_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS calendar_events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		meeting_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		meeting_url TEXT NOT NULL DEFAULT '',
		starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
		attendees JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_calendar_events_starts_at
		ON calendar_events(starts_at);

	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		internal_domains JSONB
	);
`
