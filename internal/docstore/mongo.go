package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/srizd/clinishare/backend/internal/domain"
)

const (
	usersCollection         = "users"
	verificationsCollection = "verifications"
	patientsCollection      = "patients"
	researchCollection      = "research"
	rewardsCollection       = "rewards"
	accessLogsCollection    = "accessLogs"
)

// MongoOptions configures the document store connection.
type MongoOptions struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// MongoStore is the production Store backed by MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.URI == "" {
		return nil, errors.New("mongodb URI is required")
	}

	connectCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(opts.Database),
	}, nil
}

// Ping verifies connectivity, for health probes.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) EnsureProfile(ctx context.Context, address string, now time.Time) (domain.UserProfile, bool, error) {
	coll := s.db.Collection(usersCollection)

	update := bson.M{
		"$setOnInsert": bson.M{
			"role":               domain.RoleExplorer,
			"verificationStatus": domain.VerificationNone,
			"createdAt":          now,
			"updatedAt":          now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var before domain.UserProfile
	err := coll.FindOneAndUpdate(ctx, bson.M{"_id": address}, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		profile := domain.UserProfile{
			Address:            address,
			Role:               domain.RoleExplorer,
			VerificationStatus: domain.VerificationNone,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return profile, true, nil
	}
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("ensure profile %s: %w", address, err)
	}
	return before, false, nil
}

func (s *MongoStore) GetProfile(ctx context.Context, address string) (domain.UserProfile, error) {
	var profile domain.UserProfile
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": address}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile %s: %w", address, err)
	}
	return profile, nil
}

func (s *MongoStore) PutProfile(ctx context.Context, profile domain.UserProfile) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(usersCollection).ReplaceOne(ctx, bson.M{"_id": profile.Address}, profile, opts)
	if err != nil {
		return fmt.Errorf("put profile %s: %w", profile.Address, err)
	}
	return nil
}

func (s *MongoStore) UpdateProfileVerification(ctx context.Context, address string, role domain.Role, status domain.VerificationStatus, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"role":               role,
		"verificationStatus": status,
		"updatedAt":          at,
	}}
	res, err := s.db.Collection(usersCollection).UpdateOne(ctx, bson.M{"_id": address}, update)
	if err != nil {
		return fmt.Errorf("update profile verification %s: %w", address, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) PutVerification(ctx context.Context, req domain.VerificationRequest) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(verificationsCollection).ReplaceOne(ctx, bson.M{"_id": req.Address}, req, opts)
	if err != nil {
		return fmt.Errorf("put verification %s: %w", req.Address, err)
	}
	return nil
}

func (s *MongoStore) GetVerification(ctx context.Context, address string) (domain.VerificationRequest, error) {
	var req domain.VerificationRequest
	err := s.db.Collection(verificationsCollection).FindOne(ctx, bson.M{"_id": address}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.VerificationRequest{}, ErrNotFound
	}
	if err != nil {
		return domain.VerificationRequest{}, fmt.Errorf("get verification %s: %w", address, err)
	}
	return req, nil
}

func (s *MongoStore) ListVerifications(ctx context.Context, status domain.SubmissionStatus) ([]domain.VerificationRequest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	cursor, err := s.db.Collection(verificationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	var reqs []domain.VerificationRequest
	if err := cursor.All(ctx, &reqs); err != nil {
		return nil, fmt.Errorf("decode verifications: %w", err)
	}
	return reqs, nil
}

func (s *MongoStore) TransitionVerification(ctx context.Context, address string, to domain.SubmissionStatus, outcome ReviewOutcome) (domain.VerificationRequest, error) {
	filter := bson.M{"_id": address, "status": domain.StatusPending}
	update := bson.M{"$set": bson.M{
		"status":      to,
		"reviewedBy":  outcome.Reviewer,
		"reviewedAt":  outcome.At,
		"reviewNotes": outcome.Notes,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var req domain.VerificationRequest
	err := s.db.Collection(verificationsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.VerificationRequest{}, s.classifyMiss(ctx, verificationsCollection, address)
	}
	if err != nil {
		return domain.VerificationRequest{}, fmt.Errorf("transition verification %s: %w", address, err)
	}
	return req, nil
}

func (s *MongoStore) PutPatientRecord(ctx context.Context, rec domain.PatientRecord) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(patientsCollection).ReplaceOne(ctx, bson.M{"_id": rec.Address}, rec, opts)
	if err != nil {
		return fmt.Errorf("put patient record %s: %w", rec.Address, err)
	}
	return nil
}

func (s *MongoStore) GetPatientRecord(ctx context.Context, address string) (domain.PatientRecord, error) {
	var rec domain.PatientRecord
	err := s.db.Collection(patientsCollection).FindOne(ctx, bson.M{"_id": address}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.PatientRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.PatientRecord{}, fmt.Errorf("get patient record %s: %w", address, err)
	}
	return rec, nil
}

func (s *MongoStore) ListPatientRecords(ctx context.Context, status domain.PatientStatus) ([]domain.PatientRecord, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}})
	cursor, err := s.db.Collection(patientsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list patient records: %w", err)
	}
	var recs []domain.PatientRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode patient records: %w", err)
	}
	return recs, nil
}

func (s *MongoStore) TransitionPatientRecord(ctx context.Context, address string, to domain.PatientStatus, outcome ReviewOutcome, rewardAmount domain.Octas) (domain.PatientRecord, error) {
	filter := bson.M{"_id": address, "status": domain.PatientPending}
	update := bson.M{"$set": bson.M{
		"status":         to,
		"verifiedBy":     outcome.Reviewer,
		"verifiedAt":     outcome.At,
		"reviewNotes":    outcome.Notes,
		"rewardEligible": to == domain.PatientVerified,
		"rewardAmount":   rewardAmount,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec domain.PatientRecord
	err := s.db.Collection(patientsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.PatientRecord{}, s.classifyMiss(ctx, patientsCollection, address)
	}
	if err != nil {
		return domain.PatientRecord{}, fmt.Errorf("transition patient record %s: %w", address, err)
	}
	return rec, nil
}

func (s *MongoStore) InsertResearch(ctx context.Context, sub domain.ResearchSubmission) error {
	_, err := s.db.Collection(researchCollection).InsertOne(ctx, sub)
	if err != nil {
		return fmt.Errorf("insert research %s: %w", sub.ID, err)
	}
	return nil
}

func (s *MongoStore) GetResearch(ctx context.Context, id string) (domain.ResearchSubmission, error) {
	var sub domain.ResearchSubmission
	err := s.db.Collection(researchCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ResearchSubmission{}, ErrNotFound
	}
	if err != nil {
		return domain.ResearchSubmission{}, fmt.Errorf("get research %s: %w", id, err)
	}
	return sub, nil
}

func (s *MongoStore) ListResearch(ctx context.Context, status domain.SubmissionStatus) ([]domain.ResearchSubmission, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return s.findResearch(ctx, filter)
}

func (s *MongoStore) ListResearchByAuthor(ctx context.Context, author string) ([]domain.ResearchSubmission, error) {
	return s.findResearch(ctx, bson.M{"author": author})
}

func (s *MongoStore) findResearch(ctx context.Context, filter bson.M) ([]domain.ResearchSubmission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	cursor, err := s.db.Collection(researchCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list research: %w", err)
	}
	var subs []domain.ResearchSubmission
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("decode research: %w", err)
	}
	return subs, nil
}

func (s *MongoStore) TransitionResearch(ctx context.Context, id string, to domain.SubmissionStatus, outcome ReviewOutcome) (domain.ResearchSubmission, error) {
	filter := bson.M{"_id": id, "status": domain.StatusPending}
	update := bson.M{"$set": bson.M{
		"status":      to,
		"reviewedBy":  outcome.Reviewer,
		"reviewedAt":  outcome.At,
		"reviewNotes": outcome.Notes,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sub domain.ResearchSubmission
	err := s.db.Collection(researchCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ResearchSubmission{}, s.classifyMiss(ctx, researchCollection, id)
	}
	if err != nil {
		return domain.ResearchSubmission{}, fmt.Errorf("transition research %s: %w", id, err)
	}
	return sub, nil
}

func (s *MongoStore) InsertReward(ctx context.Context, rec domain.RewardRecord) error {
	_, err := s.db.Collection(rewardsCollection).InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateReward
	}
	if err != nil {
		return fmt.Errorf("insert reward %s: %w", rec.ID, err)
	}
	return nil
}

func (s *MongoStore) GetReward(ctx context.Context, id string) (domain.RewardRecord, error) {
	var rec domain.RewardRecord
	err := s.db.Collection(rewardsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.RewardRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.RewardRecord{}, fmt.Errorf("get reward %s: %w", id, err)
	}
	return rec, nil
}

func (s *MongoStore) ListRewardsByRecipient(ctx context.Context, recipient string) ([]domain.RewardRecord, error) {
	return s.findRewards(ctx, bson.M{"recipient": recipient})
}

func (s *MongoStore) ListRewardsByStatus(ctx context.Context, status domain.RewardStatus) ([]domain.RewardRecord, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return s.findRewards(ctx, filter)
}

func (s *MongoStore) findRewards(ctx context.Context, filter bson.M) ([]domain.RewardRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.db.Collection(rewardsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	var recs []domain.RewardRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode rewards: %w", err)
	}
	return recs, nil
}

func (s *MongoStore) SettleReward(ctx context.Context, id string, status domain.RewardStatus, txHash, failureReason string, at time.Time) (domain.RewardRecord, error) {
	filter := bson.M{"_id": id, "status": domain.RewardPending}
	update := bson.M{"$set": bson.M{
		"status":          status,
		"transactionHash": txHash,
		"failureReason":   failureReason,
		"processedAt":     at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec domain.RewardRecord
	err := s.db.Collection(rewardsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		count, countErr := s.db.Collection(rewardsCollection).CountDocuments(ctx, bson.M{"_id": id})
		if countErr == nil && count == 0 {
			return domain.RewardRecord{}, ErrNotFound
		}
		return domain.RewardRecord{}, ErrNotPending
	}
	if err != nil {
		return domain.RewardRecord{}, fmt.Errorf("settle reward %s: %w", id, err)
	}
	return rec, nil
}

func (s *MongoStore) RewardStats(ctx context.Context) (domain.RewardStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":    "$status",
			"count":  bson.M{"$sum": 1},
			"amount": bson.M{"$sum": "$amount"},
		}}},
	}
	cursor, err := s.db.Collection(rewardsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return domain.RewardStats{}, fmt.Errorf("aggregate reward stats: %w", err)
	}

	var groups []struct {
		Status domain.RewardStatus `bson:"_id"`
		Count  int                 `bson:"count"`
		Amount int64               `bson:"amount"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return domain.RewardStats{}, fmt.Errorf("decode reward stats: %w", err)
	}

	var stats domain.RewardStats
	for _, g := range groups {
		stats.Total += g.Count
		stats.TotalAmount += domain.Octas(g.Amount)
		switch g.Status {
		case domain.RewardPending:
			stats.Pending = g.Count
		case domain.RewardCompleted:
			stats.Completed = g.Count
		case domain.RewardFailed:
			stats.Failed = g.Count
		}
	}
	return stats, nil
}

func (s *MongoStore) AppendAccessLog(ctx context.Context, entry domain.AccessLogEntry) error {
	_, err := s.db.Collection(accessLogsCollection).InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

func (s *MongoStore) ListAccessLogsForPatient(ctx context.Context, patient string) ([]domain.AccessLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := s.db.Collection(accessLogsCollection).Find(ctx, bson.M{"patient": patient}, opts)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	var entries []domain.AccessLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode access logs: %w", err)
	}
	return entries, nil
}

// classifyMiss distinguishes a missing document from one that already left
// the pending state.
func (s *MongoStore) classifyMiss(ctx context.Context, collection, id string) error {
	count, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("classify transition miss %s/%s: %w", collection, id, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrAlreadyReviewed
}
