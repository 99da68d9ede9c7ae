package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"autoreply-bot/models"
)

// Collection names
const (
	settingsCollection  = "settings"
	pagesCollection     = "pages"
	postsCollection     = "posts"
	commentsCollection  = "comments"
	inboxCollection     = "inbox"
	responsesCollection = "responses"
	logsCollection      = "logs"
	ordersCollection    = "orders"
	customersCollection = "customers"
	agentsCollection    = "agents"
	reportsCollection   = "reports"
	productsCollection  = "shopify_products"
	usersCollection     = "users"
)

// ErrUserNotFound is returned when no user has the given username
var ErrUserNotFound = errors.New("user not found")

// InitMongoDB connects to MongoDB and verifies the connection
func InitMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	slog.Info("Connected to MongoDB")
	return client, nil
}

// Store is the MongoDB persistence layer. It implements CredentialStore, LogSink,
// PageStore and CounterSource.
type Store struct {
	db *mongo.Database

	// pending tracks the log entries still being written
	pending sync.WaitGroup
}

// NewStore opens databaseName, creates indexes and seeds the service settings
func NewStore(ctx context.Context, client *mongo.Client, databaseName string) (*Store, error) {
	s := &Store{db: client.Database(databaseName)}
	s.createIndexes(ctx)
	if err := s.SeedServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed services: %w", err)
	}
	return s, nil
}

// createIndexes creates necessary database indexes
func (s *Store) createIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.M{field: 1}, Options: options.Index().SetUnique(true)}
	}

	indexes := map[string][]mongo.IndexModel{
		settingsCollection: {unique("service_name")},
		pagesCollection:    {unique("page_id")},
		postsCollection:    {unique("post_id"), {Keys: bson.M{"page_id": 1}}},
		commentsCollection: {unique("comment_id"), {Keys: bson.M{"post_id": 1}}, {Keys: bson.M{"created_time": -1}}},
		inboxCollection: {
			unique("message_id"),
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "page_id", Value: 1}}},
		},
		responsesCollection: {{Keys: bson.M{"page_id": 1}}, {Keys: bson.M{"timestamp": -1}}},
		logsCollection:      {{Keys: bson.M{"created_at": -1}}},
		ordersCollection:    {unique("order_id"), {Keys: bson.M{"created_at": -1}}, {Keys: bson.M{"agent_id": 1}}},
		customersCollection: {unique("phone")},
		agentsCollection:    {unique("agent_id")},
		productsCollection:  {unique("product_id")},
		usersCollection:     {unique("username")},
	}

	for name, idx := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			slog.Warn("Failed to create indexes", "collection", name, "error", err)
		}
	}
}

// --- service settings ---

// SeedServices makes sure every known service has a settings document
func (s *Store) SeedServices(ctx context.Context) error {
	collection := s.db.Collection(settingsCollection)
	for _, service := range models.AllServices {
		_, err := collection.UpdateOne(ctx,
			bson.M{"service_name": service},
			bson.M{"$setOnInsert": bson.M{
				"service_name": service,
				"access_token": "",
				"status":       false,
				"created_at":   time.Now(),
			}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) credential(ctx context.Context, service string) (*models.ServiceCredential, error) {
	var cred models.ServiceCredential
	err := s.db.Collection(settingsCollection).FindOne(ctx, bson.M{"service_name": service}).Decode(&cred)
	if err == mongo.ErrNoDocuments {
		return &models.ServiceCredential{Service: service}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Token returns the stored access token of service, "" when none
func (s *Store) Token(ctx context.Context, service string) (string, error) {
	cred, err := s.credential(ctx, service)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Status reports whether service is enabled
func (s *Store) Status(ctx context.Context, service string) (bool, error) {
	cred, err := s.credential(ctx, service)
	if err != nil {
		return false, err
	}
	return cred.Status, nil
}

// SaveToken stores the tokens of service and enables it
func (s *Store) SaveToken(ctx context.Context, service, accessToken, refreshToken string) error {
	update := bson.M{"$set": bson.M{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"status":        true,
		"updated_at":    time.Now(),
	}}
	_, err := s.db.Collection(settingsCollection).UpdateOne(ctx,
		bson.M{"service_name": service}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save %s token: %w", service, err)
	}
	slog.Info("Service token saved", "service", service)
	return nil
}

// SetStatus enables or disables service
func (s *Store) SetStatus(ctx context.Context, service string, enabled bool) error {
	_, err := s.db.Collection(settingsCollection).UpdateOne(ctx,
		bson.M{"service_name": service},
		bson.M{"$set": bson.M{"status": enabled, "updated_at": time.Now()}},
		options.Update().SetUpsert(true))
	return err
}

// Services lists the settings of every service
func (s *Store) Services(ctx context.Context) ([]models.ServiceCredential, error) {
	cursor, err := s.db.Collection(settingsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"service_name": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var creds []models.ServiceCredential
	if err := cursor.All(ctx, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// --- operational log ---

// Log records an operational event without blocking the caller
func (s *Store) Log(_ context.Context, level, message, service string) {
	logOperational(level, message, service)

	entry := models.LogEntry{
		Level:     level,
		Message:   message,
		Service:   service,
		CreatedAt: time.Now(),
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.db.Collection(logsCollection).InsertOne(ctx, entry); err != nil {
			slog.Error("Failed to save log entry", "error", err)
		}
	}()
}

// Flush waits for the log entries still being written, at most until ctx is done
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecentLogs returns the newest log entries
func (s *Store) RecentLogs(ctx context.Context, limit int64) ([]models.LogEntry, error) {
	cursor, err := s.db.Collection(logsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []models.LogEntry{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// --- pages and posts ---

// SavePage creates or updates a page's settings
func (s *Store) SavePage(ctx context.Context, page *models.Page) error {
	set := bson.M{
		"page_name":       page.PageName,
		"welcome_message": page.WelcomeMessage,
		"status":          page.Status,
	}
	if page.AccessToken != "" {
		set["access_token"] = page.AccessToken
	}
	_, err := s.db.Collection(pagesCollection).UpdateOne(ctx,
		bson.M{"page_id": page.PageID},
		bson.M{"$set": set, "$setOnInsert": bson.M{"created_at": time.Now()}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save page %s: %w", page.PageID, err)
	}
	return nil
}

// Page returns the stored page, nil when unknown
func (s *Store) Page(ctx context.Context, pageID string) (*models.Page, error) {
	var page models.Page
	err := s.db.Collection(pagesCollection).FindOne(ctx, bson.M{"page_id": pageID}).Decode(&page)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// PageName returns the stored page name, "" when unknown
func (s *Store) PageName(ctx context.Context, pageID string) string {
	page, err := s.Page(ctx, pageID)
	if err != nil {
		slog.Warn("Failed to load page", "pageID", pageID, "error", err)
		return ""
	}
	if page == nil {
		return ""
	}
	return page.PageName
}

// WelcomeMessage returns the page's welcome message
func (s *Store) WelcomeMessage(ctx context.Context, pageID string) (string, bool, error) {
	page, err := s.Page(ctx, pageID)
	if err != nil || page == nil {
		return "", false, err
	}
	return page.WelcomeMessage, page.WelcomeMessage != "", nil
}

// PageAccessToken returns the page's own token, falling back to the facebook service token
func (s *Store) PageAccessToken(ctx context.Context, pageID string) (string, error) {
	page, err := s.Page(ctx, pageID)
	if err != nil {
		return "", err
	}
	if page != nil && page.AccessToken != "" {
		return page.AccessToken, nil
	}
	return s.Token(ctx, models.ServiceFacebook)
}

// SetAutoReply stores the auto-reply template of a post. An empty text removes it.
func (s *Store) SetAutoReply(ctx context.Context, postID, pageID, text string) error {
	set := bson.M{"auto_reply": text, "status": true, "updated_at": time.Now()}
	if pageID != "" {
		set["page_id"] = pageID
	}
	_, err := s.db.Collection(postsCollection).UpdateOne(ctx,
		bson.M{"post_id": postID}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save auto-reply for post %s: %w", postID, err)
	}
	return nil
}

// AutoReplyTemplate returns the active auto-reply template of a post
func (s *Store) AutoReplyTemplate(ctx context.Context, postID string) (string, bool, error) {
	var post models.Post
	err := s.db.Collection(postsCollection).FindOne(ctx, bson.M{"post_id": postID, "status": true}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return post.AutoReply, post.AutoReply != "", nil
}

// --- comments, inbox and responses ---

// SaveComment upserts a comment by its Facebook id
func (s *Store) SaveComment(ctx context.Context, comment *models.Comment) error {
	_, err := s.db.Collection(commentsCollection).UpdateOne(ctx,
		bson.M{"comment_id": comment.CommentID},
		bson.M{"$set": comment},
		options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("Failed to save comment", "error", err, "commentID", comment.CommentID)
		return err
	}
	return nil
}

// ClaimComment records comment as pending unless another delivery of the same id is
// pending or replied. A failed comment may be claimed again. The unique comment_id
// index makes the claim atomic across concurrent webhook deliveries.
func (s *Store) ClaimComment(ctx context.Context, comment *models.Comment) (bool, error) {
	return s.claim(ctx, commentsCollection, "comment_id", comment.CommentID, comment)
}

// ClaimMessage is ClaimComment for Messenger messages
func (s *Store) ClaimMessage(ctx context.Context, msg *models.InboxMessage) (bool, error) {
	return s.claim(ctx, inboxCollection, "message_id", msg.MessageID, msg)
}

func (s *Store) claim(ctx context.Context, collection, key, id string, doc interface{}) (bool, error) {
	_, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{key: id, "status": models.StatusFailed},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveInbox upserts a direct message by its Messenger id
func (s *Store) SaveInbox(ctx context.Context, msg *models.InboxMessage) error {
	_, err := s.db.Collection(inboxCollection).UpdateOne(ctx,
		bson.M{"message_id": msg.MessageID},
		bson.M{"$set": msg},
		options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("Failed to save inbox message", "error", err, "messageID", msg.MessageID)
		return err
	}
	return nil
}

// IsFirstMessage reports whether userID never messaged pageID before
func (s *Store) IsFirstMessage(ctx context.Context, userID, pageID string) (bool, error) {
	count, err := s.db.Collection(inboxCollection).CountDocuments(ctx,
		firstMessageFilter(userID, pageID),
		options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// firstMessageFilter matches the earlier messages of a sender. Pending messages are
// claims still being answered, including the one being asked about, and do not count.
func firstMessageFilter(userID, pageID string) bson.M {
	return bson.M{"user_id": userID, "page_id": pageID, "status": bson.M{"$ne": models.StatusPending}}
}

// SaveResponse records a reply produced by the pipeline
func (s *Store) SaveResponse(ctx context.Context, response *models.Response) error {
	_, err := s.db.Collection(responsesCollection).InsertOne(ctx, response)
	return err
}

// RecentResponses returns the newest pipeline replies
func (s *Store) RecentResponses(ctx context.Context, limit int64) ([]models.Response, error) {
	cursor, err := s.db.Collection(responsesCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"timestamp": -1}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	responses := []models.Response{}
	if err := cursor.All(ctx, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// --- orders, customers and agents ---

// SaveOrder stores an order and keeps the customer record current
func (s *Store) SaveOrder(ctx context.Context, order *models.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	_, err := s.db.Collection(ordersCollection).UpdateOne(ctx,
		bson.M{"order_id": order.OrderID},
		bson.M{"$set": order},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.OrderID, err)
	}
	return s.countCustomerOrder(ctx, order)
}

// InsertOrder stores a new order and fails with ErrDuplicateOrder when its id is taken
func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	_, err := s.db.Collection(ordersCollection).InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.OrderID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.OrderID, err)
	}
	return s.countCustomerOrder(ctx, order)
}

func (s *Store) countCustomerOrder(ctx context.Context, order *models.Order) error {
	if order.CustomerPhone == "" {
		return nil
	}
	_, err := s.db.Collection(customersCollection).UpdateOne(ctx,
		bson.M{"phone": order.CustomerPhone},
		bson.M{
			"$set":         bson.M{"name": order.CustomerName},
			"$setOnInsert": bson.M{"first_order_at": order.CreatedAt},
			"$inc":         bson.M{"orders_count": 1},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update customer %s: %w", order.CustomerPhone, err)
	}
	return nil
}

// SaveAgent creates or updates a delivery agent
func (s *Store) SaveAgent(ctx context.Context, agent *models.Agent) error {
	_, err := s.db.Collection(agentsCollection).UpdateOne(ctx,
		bson.M{"agent_id": agent.AgentID},
		bson.M{"$set": agent},
		options.Update().SetUpsert(true))
	return err
}

// Agent returns the agent with agentID, nil when unknown
func (s *Store) Agent(ctx context.Context, agentID string) (*models.Agent, error) {
	var agent models.Agent
	err := s.db.Collection(agentsCollection).FindOne(ctx, bson.M{"agent_id": agentID}).Decode(&agent)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

type orderTotals struct {
	Total     int     `bson:"total"`
	Value     float64 `bson:"value"`
	Succeeded int     `bson:"succeeded"`
	Cancelled int     `bson:"cancelled"`
}

type agentTally struct {
	AgentID   string  `bson:"_id"`
	Completed int     `bson:"completed"`
	Sales     float64 `bson:"sales"`
}

func countIf(status string) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", status}}, 1, 0}}}
}

// DailyCounters aggregates the orders, customers and agents of day
func (s *Store) DailyCounters(ctx context.Context, day time.Time) (models.ReportCounters, error) {
	start, end := dayBounds(day)
	counters := models.ReportCounters{Date: start}
	orders := s.db.Collection(ordersCollection)
	inDay := bson.M{"created_at": bson.M{"$gte": start, "$lt": end}}

	cursor, err := orders.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: inDay}},
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"total":     bson.M{"$sum": 1},
			"value":     bson.M{"$sum": "$value"},
			"succeeded": countIf(models.OrderDelivered),
			"cancelled": countIf(models.OrderCancelled),
		}}},
	})
	if err != nil {
		return counters, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	var totals []orderTotals
	if err := cursor.All(ctx, &totals); err != nil {
		return counters, fmt.Errorf("failed to decode order totals: %w", err)
	}
	if len(totals) > 0 {
		counters.Orders = models.OrderCounters(totals[0])
	}

	phones, err := orders.Distinct(ctx, "customer_phone", bson.M{
		"created_at":     inDay["created_at"],
		"customer_phone": bson.M{"$ne": ""},
	})
	if err != nil {
		return counters, fmt.Errorf("failed to list customers: %w", err)
	}
	newCustomers, err := s.db.Collection(customersCollection).CountDocuments(ctx, bson.M{
		"phone":          bson.M{"$in": phones},
		"first_order_at": bson.M{"$gte": start, "$lt": end},
	})
	if err != nil {
		return counters, fmt.Errorf("failed to count new customers: %w", err)
	}
	counters.Customers = splitCustomers(len(phones), newCustomers)

	tallies, err := s.agentTallies(ctx, start, end)
	if err != nil {
		return counters, err
	}
	counters.Agents.Active = len(tallies)
	if top := topAgent(tallies); top != "" {
		counters.Agents.TopAgent = top
		if agent, err := s.Agent(ctx, top); err == nil && agent != nil && agent.Name != "" {
			counters.Agents.TopAgent = agent.Name
		}
	}

	return counters, nil
}

// agentTallies ranks the agents who handled orders in [start, end) by delivered orders
func (s *Store) agentTallies(ctx context.Context, start, end time.Time) ([]agentTally, error) {
	cursor, err := s.db.Collection(ordersCollection).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"created_at": bson.M{"$gte": start, "$lt": end},
			"agent_id":   bson.M{"$nin": bson.A{"", nil}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$agent_id",
			"completed": countIf(models.OrderDelivered),
			"sales": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$status", models.OrderDelivered}}, "$value", 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "completed", Value: -1}, {Key: "sales", Value: -1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate agents: %w", err)
	}
	var tallies []agentTally
	if err := cursor.All(ctx, &tallies); err != nil {
		return nil, fmt.Errorf("failed to decode agent tallies: %w", err)
	}
	rankTallies(tallies)
	return tallies, nil
}

// rankTallies orders agents by delivered orders, then sales, then id so ties rank the
// same way on every run
func rankTallies(tallies []agentTally) {
	sort.SliceStable(tallies, func(i, j int) bool {
		a, b := tallies[i], tallies[j]
		if a.Completed != b.Completed {
			return a.Completed > b.Completed
		}
		if a.Sales != b.Sales {
			return a.Sales > b.Sales
		}
		return a.AgentID < b.AgentID
	})
}

// topAgent is the first ranked agent, empty when nobody delivered an order
func topAgent(ranked []agentTally) string {
	if len(ranked) == 0 || ranked[0].Completed == 0 {
		return ""
	}
	return ranked[0].AgentID
}

// rankAgent reads one agent's figures off the ranking. Rank is 0 for an agent
// without orders that day.
func rankAgent(ranked []agentTally, agentID string) models.AgentPerformance {
	for i, t := range ranked {
		if t.AgentID == agentID {
			return models.AgentPerformance{
				CompletedOrders: t.Completed,
				TotalSales:      t.Sales,
				Rank:            i + 1,
			}
		}
	}
	return models.AgentPerformance{}
}

// splitCustomers divides the distinct customers of a day into first-time and returning
func splitCustomers(distinct int, firstTime int64) models.CustomerCounters {
	split := models.CustomerCounters{New: int(firstTime), Returning: distinct - int(firstTime)}
	if split.Returning < 0 {
		split.Returning = 0
	}
	return split
}

// AgentPerformance computes one agent's figures for day
func (s *Store) AgentPerformance(ctx context.Context, agentID string, day time.Time) (models.AgentPerformance, error) {
	start, end := dayBounds(day)

	tallies, err := s.agentTallies(ctx, start, end)
	if err != nil {
		return models.AgentPerformance{}, err
	}
	perf := rankAgent(tallies, agentID)

	agent, err := s.Agent(ctx, agentID)
	if err != nil {
		return perf, err
	}
	if agent != nil {
		perf.CustomerRating = agent.Rating
	}
	return perf, nil
}

// SaveReport records a generated report
func (s *Store) SaveReport(ctx context.Context, report *models.ReportRecord) error {
	_, err := s.db.Collection(reportsCollection).InsertOne(ctx, report)
	return err
}

// --- products ---

// SaveProducts upserts the synced catalogue
func (s *Store) SaveProducts(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(products))
	for _, p := range products {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"product_id": p.ProductID}).
			SetUpdate(bson.M{"$set": p}).
			SetUpsert(true))
	}
	_, err := s.db.Collection(productsCollection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to save products: %w", err)
	}
	return nil
}

// Products returns the persisted catalogue
func (s *Store) Products(ctx context.Context) ([]models.Product, error) {
	cursor, err := s.db.Collection(productsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// --- users ---

// UserByUsername returns the user or ErrUserNotFound
func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserLastLogin stamps the user's last login
func (s *Store) UpdateUserLastLogin(ctx context.Context, username string) error {
	_, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"last_login": time.Now()}})
	return err
}

// EnsureAdmin creates the admin user when it does not exist yet
func (s *Store) EnsureAdmin(ctx context.Context, username, password string) error {
	if password == "" {
		return fmt.Errorf("admin password is not configured")
	}
	_, err := s.UserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.db.Collection(usersCollection).InsertOne(ctx, models.User{
		Username:     username,
		Role:         models.RoleAdmin,
		PasswordHash: string(hashed),
		IsActive:     true,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	slog.Info("Admin user created", "username", username)
	return nil
}

var (
	// ErrOrderNotFound is returned when assigning an unknown order
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateOrder is returned when a new order reuses an existing id
	ErrDuplicateOrder = errors.New("order id already exists")
)

// AssignOrder hands an order to a delivery agent
func (s *Store) AssignOrder(ctx context.Context, orderID, agentID string) error {
	result, err := s.db.Collection(ordersCollection).UpdateOne(ctx,
		bson.M{"order_id": orderID},
		bson.M{"$set": bson.M{"agent_id": agentID, "status": models.OrderAssigned}})
	if err != nil {
		return fmt.Errorf("failed to assign order %s: %w", orderID, err)
	}
	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}
