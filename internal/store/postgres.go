package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"nightcircle/internal/geo"
	"nightcircle/internal/models"
)

// radiusSlack widens PostGIS prefilters so the spheroid/sphere difference
// never hides a row that the haversine check would keep.
const radiusSlack = 1.01

const pointSQL = "ST_SetSRID(ST_MakePoint(%s, %s), 4326)::geography"

// Postgres is the production Store backed by PostGIS.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- users ---

const userColumns = `id, username, name, password_hash, latitude, longitude, visible, online,
	in_night_mode, night_mode_entered_at, last_night_mode_exit, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var lat, lng *float64
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &lat, &lng, &u.Visible, &u.Online,
		&u.InNightMode, &u.NightModeEnteredAt, &u.LastNightModeExit, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if lat != nil && lng != nil {
		u.Location = &models.Point{Lat: *lat, Lng: *lng}
	}
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = newID(u.ID)
	query := `INSERT INTO users (id, username, name, password_hash, visible)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	err := p.pool.QueryRow(ctx, query, u.ID, u.Username, u.Name, u.PasswordHash, u.Visible).Scan(&u.CreatedAt)
	return mapErr(err)
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (p *Postgres) SetOnline(ctx context.Context, id string, online bool) error {
	return expectOne(p.pool.Exec(ctx, `UPDATE users SET online = $2 WHERE id = $1`, id, online))
}

func (p *Postgres) SetVisible(ctx context.Context, id string, visible bool) error {
	return expectOne(p.pool.Exec(ctx, `UPDATE users SET visible = $2 WHERE id = $1`, id, visible))
}

func (p *Postgres) UpdateLocation(ctx context.Context, id string, pt models.Point) error {
	query := `UPDATE users SET latitude = $2, longitude = $3, location = ` +
		fmt.Sprintf(pointSQL, "$3", "$2") + ` WHERE id = $1`
	return expectOne(p.pool.Exec(ctx, query, id, pt.Lat, pt.Lng))
}

func (p *Postgres) EnterNightMode(ctx context.Context, id string, at time.Time) error {
	return expectOne(p.pool.Exec(ctx,
		`UPDATE users SET in_night_mode = TRUE, night_mode_entered_at = $2 WHERE id = $1`, id, at))
}

func (p *Postgres) ExitNightMode(ctx context.Context, id string, at time.Time) error {
	return expectOne(p.pool.Exec(ctx,
		`UPDATE users SET in_night_mode = FALSE, night_mode_entered_at = NULL, last_night_mode_exit = $2
		WHERE id = $1`, id, at))
}

func (p *Postgres) UsersWithin(ctx context.Context, pt models.Point, radius float64) ([]models.NearbyUser, error) {
	query := `SELECT id, username, name, online, visible, latitude, longitude FROM users
		WHERE location IS NOT NULL AND ST_DWithin(location, ` + fmt.Sprintf(pointSQL, "$1", "$2") + `, $3)`
	rows, err := p.pool.Query(ctx, query, pt.Lng, pt.Lat, radius*radiusSlack+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NearbyUser
	for rows.Next() {
		var u models.NearbyUser
		var loc models.Point
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Online, &u.Visible, &loc.Lat, &loc.Lng); err != nil {
			return nil, err
		}
		u.DistanceMeters = geo.Distance(pt, loc)
		if u.DistanceMeters <= radius {
			out = append(out, u)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortNearby(out)
	return out, nil
}

// --- groups ---

func (p *Postgres) CreateGroup(ctx context.Context, g *models.Group) error {
	g.ID = newID(g.ID)
	query := `INSERT INTO chat_groups (id, name, area_code, postal_code, tier, latitude, longitude, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, ` + fmt.Sprintf(pointSQL, "$7", "$6") + `)
		RETURNING created_at`
	err := p.pool.QueryRow(ctx, query, g.ID, g.Name, g.AreaCode, g.PostalCode, string(g.Tier),
		g.Anchor.Lat, g.Anchor.Lng).Scan(&g.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	if len(g.Members) > 0 {
		return p.AddMembers(ctx, g.ID, g.Members)
	}
	return nil
}

const groupColumns = `g.id, g.name, g.area_code, g.postal_code, g.tier, g.latitude, g.longitude, g.created_at,
	COALESCE((SELECT array_agg(m.user_id ORDER BY m.joined_at) FROM group_memberships m WHERE m.group_id = g.id), '{}')`

func scanGroup(row pgx.Row) (*models.Group, error) {
	var g models.Group
	var tier string
	err := row.Scan(&g.ID, &g.Name, &g.AreaCode, &g.PostalCode, &tier, &g.Anchor.Lat, &g.Anchor.Lng,
		&g.CreatedAt, &g.Members)
	if err != nil {
		return nil, mapErr(err)
	}
	g.Tier = models.Tier(tier)
	return &g, nil
}

func (p *Postgres) collectGroups(rows pgx.Rows) ([]models.Group, error) {
	defer rows.Close()
	var out []models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (p *Postgres) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	return scanGroup(p.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM chat_groups g WHERE g.id = $1`, id))
}

func (p *Postgres) GetGroupByName(ctx context.Context, name string) (*models.Group, error) {
	return scanGroup(p.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM chat_groups g WHERE g.name = $1`, name))
}

func (p *Postgres) AddMembers(ctx context.Context, groupID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO group_memberships (group_id, user_id)
		SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`, groupID, userIDs)
	return mapErr(err)
}

func (p *Postgres) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM group_memberships WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return err
}

func (p *Postgres) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists, member bool
	err := p.pool.QueryRow(ctx, `SELECT
		EXISTS (SELECT 1 FROM chat_groups WHERE id = $1),
		EXISTS (SELECT 1 FROM group_memberships WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&exists, &member)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return member, nil
}

func (p *Postgres) GroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+groupColumns+` FROM chat_groups g
		JOIN group_memberships gm ON gm.group_id = g.id WHERE gm.user_id = $1 ORDER BY g.name`, userID)
	if err != nil {
		return nil, err
	}
	return p.collectGroups(rows)
}

func (p *Postgres) GroupsNear(ctx context.Context, pt models.Point, radius float64) ([]models.Group, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+groupColumns+` FROM chat_groups g
		WHERE ST_DWithin(g.location, `+fmt.Sprintf(pointSQL, "$1", "$2")+`, $3)`,
		pt.Lng, pt.Lat, radius*radiusSlack+1)
	if err != nil {
		return nil, err
	}
	all, err := p.collectGroups(rows)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, g := range all {
		if geo.Within(pt, g.Anchor, radius) {
			out = append(out, g)
		}
	}
	sortGroupsByDistance(pt, out)
	return out, nil
}

// --- messages ---

const messageColumns = `id, sender_id, receiver_id, group_id, body, media_url, media_type, voice_url,
	voice_gender, status, reactions, deleted, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	var receiver, group *string
	var status string
	var reactions []byte
	err := row.Scan(&m.ID, &m.SenderID, &receiver, &group, &m.Body, &m.MediaURL, &m.MediaType,
		&m.VoiceURL, &m.VoiceGender, &status, &reactions, &m.Deleted, &m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	m.ReceiverID = deref(receiver)
	m.GroupID = deref(group)
	m.Status = models.MessageStatus(status)
	m.Reactions = models.NewReactions()
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &m.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions: %w", err)
		}
		m.Reactions = m.Reactions.Clone()
	}
	return &m, nil
}

func (p *Postgres) collectMessages(rows pgx.Rows, err error) ([]models.Message, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateMessage(ctx context.Context, m *models.Message) error {
	m.ID = newID(m.ID)
	reactions, err := json.Marshal(m.Reactions.Clone())
	if err != nil {
		return err
	}
	query := `INSERT INTO messages (id, sender_id, receiver_id, group_id, body, media_url, media_type,
		voice_url, voice_gender, status, reactions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING created_at`
	err = p.pool.QueryRow(ctx, query, m.ID, m.SenderID, nullable(m.ReceiverID), nullable(m.GroupID),
		m.Body, m.MediaURL, m.MediaType, m.VoiceURL, m.VoiceGender, string(m.Status), reactions).Scan(&m.CreatedAt)
	return mapErr(err)
}

func (p *Postgres) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return scanMessage(p.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

func (p *Postgres) UpdateMessageStatus(ctx context.Context, id string, status models.MessageStatus) error {
	return expectOne(p.pool.Exec(ctx, `UPDATE messages SET status = $2 WHERE id = $1`, id, string(status)))
}

func (p *Postgres) UpdateReactions(ctx context.Context, id string, r models.Reactions) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return expectOne(p.pool.Exec(ctx, `UPDATE messages SET reactions = $2 WHERE id = $1`, id, data))
}

func (p *Postgres) SoftDeleteMessage(ctx context.Context, id string) error {
	return expectOne(p.pool.Exec(ctx, `UPDATE messages SET deleted = TRUE WHERE id = $1`, id))
}

func (p *Postgres) PrivateHistory(ctx context.Context, a, b string, limit int) ([]models.Message, error) {
	return p.collectMessages(p.pool.Query(ctx, `SELECT * FROM (
		SELECT `+messageColumns+` FROM messages
		WHERE deleted = FALSE AND group_id IS NULL
		AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		ORDER BY created_at DESC LIMIT $3
	) h ORDER BY created_at ASC`, a, b, limitOrAll(limit)))
}

func (p *Postgres) GroupHistory(ctx context.Context, groupID string, limit int) ([]models.Message, error) {
	return p.collectMessages(p.pool.Query(ctx, `SELECT * FROM (
		SELECT `+messageColumns+` FROM messages
		WHERE deleted = FALSE AND group_id = $1
		ORDER BY created_at DESC LIMIT $2
	) h ORDER BY created_at ASC`, groupID, limitOrAll(limit)))
}

func (p *Postgres) LatestPerPeer(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	return p.collectMessages(p.pool.Query(ctx, `SELECT `+messageColumns+` FROM (
		SELECT DISTINCT ON (peer) *, CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS peer
		FROM messages
		WHERE group_id IS NULL AND deleted = FALSE AND (sender_id = $1 OR receiver_id = $1)
		ORDER BY peer, created_at DESC
	) latest ORDER BY created_at DESC LIMIT $2`, userID, limitOrAll(limit)))
}

func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

// --- notifications ---

const notificationColumns = `id, user_id, from_user_id, type, content, post_id, comment_id, message_id,
	is_read, read_at, created_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	var from *string
	var typ string
	err := row.Scan(&n.ID, &n.UserID, &from, &typ, &n.Content, &n.PostID, &n.CommentID, &n.MessageID,
		&n.Read, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	n.FromUserID = deref(from)
	n.Type = models.NotificationType(typ)
	return &n, nil
}

func (p *Postgres) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.ID = newID(n.ID)
	query := `INSERT INTO notifications (id, user_id, from_user_id, type, content, post_id, comment_id, message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`
	err := p.pool.QueryRow(ctx, query, n.ID, n.UserID, nullable(n.FromUserID), string(n.Type), n.Content,
		n.PostID, n.CommentID, n.MessageID).Scan(&n.CreatedAt)
	return mapErr(err)
}

func (p *Postgres) ListNotifications(ctx context.Context, userID string, limit, skip int) (models.NotificationPage, error) {
	page := models.NotificationPage{Notifications: []models.Notification{}}
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT is_read)
		FROM notifications WHERE user_id = $1`, userID).Scan(&page.Total, &page.Unread)
	if err != nil {
		return page, err
	}

	rows, err := p.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limitOrAll(limit), skip)
	if err != nil {
		return page, err
	}
	defer rows.Close()
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return page, err
		}
		page.Notifications = append(page.Notifications, *n)
	}
	return page, rows.Err()
}

func (p *Postgres) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) (*models.Notification, error) {
	return scanNotification(p.pool.QueryRow(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $3
		WHERE id = $1 AND user_id = $2 RETURNING `+notificationColumns, id, userID, at))
}

func (p *Postgres) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT is_read`, userID, at)
	return int(tag.RowsAffected()), err
}

func (p *Postgres) DeleteNotification(ctx context.Context, userID, id string) error {
	return expectOne(p.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID))
}

func (p *Postgres) DeleteAllNotifications(ctx context.Context, userID string) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	return int(tag.RowsAffected()), err
}

// --- statuses ---

const statusColumns = `id, user_id, content, media_url, song_url, views, viewers, expires_at, created_at`

func scanStatus(row pgx.Row) (*models.Status, error) {
	var s models.Status
	var views int
	err := row.Scan(&s.ID, &s.UserID, &s.Content, &s.MediaURL, &s.SongURL, &views, &s.Viewers,
		&s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	s.Views = &views
	return &s, nil
}

func (p *Postgres) CreateStatus(ctx context.Context, s *models.Status) error {
	s.ID = newID(s.ID)
	query := `INSERT INTO statuses (id, user_id, content, media_url, song_url, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	err := p.pool.QueryRow(ctx, query, s.ID, s.UserID, s.Content, s.MediaURL, s.SongURL, s.ExpiresAt).Scan(&s.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	zero := 0
	s.Views = &zero
	return nil
}

func (p *Postgres) GetStatus(ctx context.Context, id string, now time.Time) (*models.Status, error) {
	return scanStatus(p.pool.QueryRow(ctx, `SELECT `+statusColumns+` FROM statuses
		WHERE id = $1 AND expires_at > $2`, id, now))
}

func (p *Postgres) AddStatusViewer(ctx context.Context, id, viewer string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `UPDATE statuses SET viewers = array_append(viewers, $2), views = views + 1
		WHERE id = $1 AND NOT ($2 = ANY(viewers))`, id, viewer)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM statuses WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (p *Postgres) DeleteStatus(ctx context.Context, id string) error {
	return expectOne(p.pool.Exec(ctx, `DELETE FROM statuses WHERE id = $1`, id))
}

func (p *Postgres) StatusesByUsers(ctx context.Context, userIDs []string, now time.Time) ([]models.Status, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+statusColumns+` FROM statuses
		WHERE user_id = ANY($1) AND expires_at > $2 ORDER BY created_at DESC`, userIDs, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Status
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteExpiredStatuses(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM statuses WHERE expires_at <= $1`, now)
	return int(tag.RowsAffected()), err
}

// --- rooms ---

const roomColumns = `id, name, creator_id, participants, pending_requests, is_night_room, created_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	err := row.Scan(&r.ID, &r.Name, &r.CreatorID, &r.Participants, &r.PendingRequests, &r.IsNightRoom, &r.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (p *Postgres) collectRooms(rows pgx.Rows, err error) ([]models.Room, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateRoom(ctx context.Context, r *models.Room) error {
	r.ID = newID(r.ID)
	if r.Participants == nil {
		r.Participants = []string{}
	}
	if r.PendingRequests == nil {
		r.PendingRequests = []string{}
	}
	query := `INSERT INTO rooms (id, name, creator_id, participants, pending_requests, is_night_room)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	err := p.pool.QueryRow(ctx, query, r.ID, r.Name, r.CreatorID, r.Participants, r.PendingRequests,
		r.IsNightRoom).Scan(&r.CreatedAt)
	return mapErr(err)
}

func (p *Postgres) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	return scanRoom(p.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

func (p *Postgres) ListNightRooms(ctx context.Context) ([]models.Room, error) {
	return p.collectRooms(p.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms
		WHERE is_night_room ORDER BY created_at DESC`))
}

func (p *Postgres) RoomsCreatedBefore(ctx context.Context, t time.Time) ([]models.Room, error) {
	return p.collectRooms(p.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms
		WHERE created_at < $1 ORDER BY created_at DESC`, t))
}

func (p *Postgres) AddJoinRequest(ctx context.Context, roomID, userID string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE rooms SET pending_requests = array_append(pending_requests, $2)
		WHERE id = $1 AND NOT ($2 = ANY(pending_requests)) AND NOT ($2 = ANY(participants))`, roomID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		_, err := p.GetRoom(ctx, roomID)
		return err
	}
	return nil
}

func (p *Postgres) ApproveJoinRequest(ctx context.Context, roomID, userID string) error {
	return expectOne(p.pool.Exec(ctx, `UPDATE rooms SET
		pending_requests = array_remove(pending_requests, $2),
		participants = CASE WHEN $2 = ANY(participants) THEN participants ELSE array_append(participants, $2) END
		WHERE id = $1`, roomID, userID))
}

func (p *Postgres) DeleteRoom(ctx context.Context, id string) error {
	return expectOne(p.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id))
}

const commentColumns = `id, room_id, author_id, content, media_url, media_type, expires_at, created_at`

func (p *Postgres) CreateComment(ctx context.Context, c *models.RoomComment) error {
	c.ID = newID(c.ID)
	query := `INSERT INTO room_comments (id, room_id, author_id, content, media_url, media_type, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`
	err := p.pool.QueryRow(ctx, query, c.ID, c.RoomID, c.AuthorID, c.Content, c.MediaURL, c.MediaType,
		c.ExpiresAt).Scan(&c.CreatedAt)
	return mapErr(err)
}

func (p *Postgres) RoomComments(ctx context.Context, roomID string) ([]models.RoomComment, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+commentColumns+` FROM room_comments
		WHERE room_id = $1 ORDER BY created_at ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RoomComment
	for rows.Next() {
		var c models.RoomComment
		if err := rows.Scan(&c.ID, &c.RoomID, &c.AuthorID, &c.Content, &c.MediaURL, &c.MediaType,
			&c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteRoomComments(ctx context.Context, roomID string) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM room_comments WHERE room_id = $1`, roomID)
	return int(tag.RowsAffected()), err
}

func (p *Postgres) DeleteExpiredComments(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM room_comments WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	return int(tag.RowsAffected()), err
}
