package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create automations table
			CREATE TABLE automations (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'archived')),
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_organization_id ON automations(organization_id);
			CREATE INDEX idx_automations_status ON automations(status);
			CREATE INDEX idx_automations_created_at ON automations(created_at);

			-- Create runs table. The document lives in data; the extracted
			-- columns exist for the wait lookups and the optimistic lock.
			CREATE TABLE runs (
				id VARCHAR(255) PRIMARY KEY,
				automation_id VARCHAR(255) NOT NULL,
				lead_id VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				version BIGINT NOT NULL,
				wait_channel VARCHAR(50),
				wait_phone VARCHAR(50),
				wait_call_id VARCHAR(255),
				wait_task_id VARCHAR(255),
				wait_timeout_at TIMESTAMP WITH TIME ZONE,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_runs_lead_id ON runs(lead_id);
			CREATE INDEX idx_runs_automation_id ON runs(automation_id);
			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_wait_phone ON runs(wait_phone) WHERE wait_phone IS NOT NULL;
			CREATE INDEX idx_runs_wait_call_id ON runs(wait_call_id) WHERE wait_call_id IS NOT NULL;
			CREATE INDEX idx_runs_wait_task_id ON runs(wait_task_id) WHERE wait_task_id IS NOT NULL;
			CREATE INDEX idx_runs_wait_timeout_at ON runs(wait_timeout_at) WHERE wait_timeout_at IS NOT NULL;

			-- Create execution_log table
			CREATE TABLE execution_log (
				id VARCHAR(255) PRIMARY KEY,
				run_id VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				data JSONB NOT NULL,
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_log_run_id ON execution_log(run_id);
			CREATE INDEX idx_execution_log_recorded_at ON execution_log(recorded_at);
		`,
	}
}
