package postgres

// migrations maps schema versions to the SQL applied for each.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT,
				trigger_type TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS steps (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				type TEXT NOT NULL,
				name TEXT NOT NULL,
				config JSONB,
				UNIQUE (workflow_id, position)
			);

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				trigger_data JSONB,
				error TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON executions(workflow_id);

			CREATE TABLE IF NOT EXISTS step_executions (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL,
				step_id TEXT NOT NULL,
				position INTEGER NOT NULL,
				status TEXT NOT NULL,
				input JSONB,
				output JSONB,
				error TEXT,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT
			);

			CREATE INDEX IF NOT EXISTS idx_step_executions_execution_id ON step_executions(execution_id);
		`,
	}
}
