package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id                     TEXT PRIMARY KEY,
	guid                   TEXT NOT NULL DEFAULT '',
	name                   TEXT NOT NULL DEFAULT '',
	slugline               TEXT NOT NULL DEFAULT '',
	description            TEXT NOT NULL DEFAULT '',
	dates_start            DATETIME NOT NULL,
	dates_end              DATETIME NOT NULL,
	dates_tz               TEXT NOT NULL DEFAULT '',
	recurring_rule         TEXT NOT NULL DEFAULT '',
	recurrence_id          TEXT NOT NULL DEFAULT '',
	previous_recurrence_id TEXT NOT NULL DEFAULT '',
	state                  TEXT NOT NULL DEFAULT 'draft',
	pubstatus              TEXT NOT NULL DEFAULT '',
	expiry                 DATETIME,
	expired                INTEGER NOT NULL DEFAULT 0 CHECK(expired IN (0, 1)),
	lock_user              TEXT NOT NULL DEFAULT '',
	lock_session           TEXT NOT NULL DEFAULT '',
	lock_time              DATETIME,
	lock_action            TEXT NOT NULL DEFAULT '',
	planning_schedule      TEXT NOT NULL DEFAULT '[]',
	embedded_planning      TEXT NOT NULL DEFAULT '[]',
	reschedule_from        TEXT NOT NULL DEFAULT '',
	state_reason           TEXT NOT NULL DEFAULT '',
	original_creator       TEXT NOT NULL DEFAULT '',
	version_creator        TEXT NOT NULL DEFAULT '',
	firstcreated           DATETIME,
	versioncreated         DATETIME,
	extra                  TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_recurrence_id ON events(recurrence_id);
CREATE INDEX IF NOT EXISTS idx_events_state ON events(state);
CREATE INDEX IF NOT EXISTS idx_events_dates_start ON events(dates_start);
CREATE INDEX IF NOT EXISTS idx_events_dates_end ON events(dates_end);
CREATE INDEX IF NOT EXISTS idx_events_expired ON events(expired);

CREATE TABLE IF NOT EXISTS planning (
	id                     TEXT PRIMARY KEY,
	guid                   TEXT NOT NULL DEFAULT '',
	headline               TEXT NOT NULL DEFAULT '',
	slugline               TEXT NOT NULL DEFAULT '',
	name                   TEXT NOT NULL DEFAULT '',
	description_text       TEXT NOT NULL DEFAULT '',
	internal_note          TEXT NOT NULL DEFAULT '',
	planning_date          DATETIME NOT NULL,
	recurrence_id          TEXT NOT NULL DEFAULT '',
	planning_recurrence_id TEXT NOT NULL DEFAULT '',
	related_events         TEXT NOT NULL DEFAULT '[]',
	coverages              TEXT NOT NULL DEFAULT '[]',
	state                  TEXT NOT NULL DEFAULT 'draft',
	expired                INTEGER NOT NULL DEFAULT 0 CHECK(expired IN (0, 1)),
	lock_user              TEXT NOT NULL DEFAULT '',
	lock_session           TEXT NOT NULL DEFAULT '',
	lock_time              DATETIME,
	lock_action            TEXT NOT NULL DEFAULT '',
	flags                  TEXT NOT NULL DEFAULT '{}',
	planning_schedule      TEXT NOT NULL DEFAULT '[]',
	updates_schedule       TEXT NOT NULL DEFAULT '[]',
	max_scheduled          DATETIME,
	original_creator       TEXT NOT NULL DEFAULT '',
	version_creator        TEXT NOT NULL DEFAULT '',
	firstcreated           DATETIME,
	versioncreated         DATETIME
);

CREATE INDEX IF NOT EXISTS idx_planning_recurrence_id ON planning(recurrence_id);
CREATE INDEX IF NOT EXISTS idx_planning_planning_recurrence_id
	ON planning(planning_recurrence_id);
CREATE INDEX IF NOT EXISTS idx_planning_state ON planning(state);
CREATE INDEX IF NOT EXISTS idx_planning_planning_date ON planning(planning_date);
CREATE INDEX IF NOT EXISTS idx_planning_expired ON planning(expired);

CREATE TABLE IF NOT EXISTS planning_event_links (
	planning_id   TEXT NOT NULL REFERENCES planning(id) ON DELETE CASCADE,
	event_id      TEXT NOT NULL,
	link_type     TEXT NOT NULL DEFAULT 'primary' CHECK(link_type IN ('primary', 'secondary')),
	recurrence_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (planning_id, event_id)
);

CREATE INDEX IF NOT EXISTS idx_planning_event_links_event_id
	ON planning_event_links(event_id);

CREATE TABLE IF NOT EXISTS assignments (
	id                  TEXT PRIMARY KEY,
	planning_item       TEXT NOT NULL,
	coverage_item       TEXT NOT NULL,
	scheduled_update_id TEXT NOT NULL DEFAULT '',
	assigned_to         TEXT NOT NULL DEFAULT '{}',
	planning            TEXT NOT NULL DEFAULT '{}',
	priority            INTEGER NOT NULL DEFAULT 2,
	name                TEXT NOT NULL DEFAULT '',
	description_text    TEXT NOT NULL DEFAULT '',
	lock_user           TEXT NOT NULL DEFAULT '',
	lock_session        TEXT NOT NULL DEFAULT '',
	lock_time           DATETIME,
	lock_action         TEXT NOT NULL DEFAULT '',
	firstcreated        DATETIME,
	versioncreated      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_assignments_planning_item ON assignments(planning_item);
CREATE INDEX IF NOT EXISTS idx_assignments_coverage_item ON assignments(coverage_item);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
