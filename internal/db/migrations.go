package db

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,

	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username VARCHAR(50) UNIQUE NOT NULL,
		name VARCHAR(100) NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		location GEOGRAPHY(POINT, 4326),
		visible BOOLEAN NOT NULL DEFAULT TRUE,
		online BOOLEAN NOT NULL DEFAULT FALSE,
		in_night_mode BOOLEAN NOT NULL DEFAULT FALSE,
		night_mode_entered_at TIMESTAMPTZ,
		last_night_mode_exit TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS users_location_idx ON users USING GIST (location)`,

	`CREATE TABLE IF NOT EXISTS chat_groups (
		id TEXT PRIMARY KEY,
		name VARCHAR(100) UNIQUE NOT NULL,
		area_code VARCHAR(8) NOT NULL,
		postal_code VARCHAR(8) NOT NULL,
		tier VARCHAR(4) NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		location GEOGRAPHY(POINT, 4326) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS chat_groups_location_idx ON chat_groups USING GIST (location)`,

	`CREATE TABLE IF NOT EXISTS group_memberships (
		group_id TEXT REFERENCES chat_groups(id) ON DELETE CASCADE,
		user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (group_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		receiver_id TEXT REFERENCES users(id) ON DELETE CASCADE,
		group_id TEXT REFERENCES chat_groups(id) ON DELETE CASCADE,
		body TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		media_type VARCHAR(16) NOT NULL DEFAULT '',
		voice_url TEXT NOT NULL DEFAULT '',
		voice_gender VARCHAR(16) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'sent',
		reactions JSONB NOT NULL DEFAULT '{}',
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (
			(receiver_id IS NOT NULL AND group_id IS NULL) OR
			(receiver_id IS NULL AND group_id IS NOT NULL)
		)
	)`,
	`CREATE INDEX IF NOT EXISTS messages_pair_idx ON messages (sender_id, receiver_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS messages_group_idx ON messages (group_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		from_user_id TEXT,
		type VARCHAR(16) NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		post_id TEXT NOT NULL DEFAULT '',
		comment_id TEXT NOT NULL DEFAULT '',
		message_id TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		read_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS statuses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		song_url TEXT NOT NULL DEFAULT '',
		views INT NOT NULL DEFAULT 0,
		viewers TEXT[] NOT NULL DEFAULT '{}',
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS statuses_expires_idx ON statuses (expires_at)`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		creator_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		participants TEXT[] NOT NULL DEFAULT '{}',
		pending_requests TEXT[] NOT NULL DEFAULT '{}',
		is_night_room BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS room_comments (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		media_type VARCHAR(16) NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS room_comments_expires_idx ON room_comments (expires_at) WHERE expires_at IS NOT NULL`,
}
