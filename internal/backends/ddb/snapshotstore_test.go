package ddb

import (
	"context"
	"os"
	"testing"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const TestTableName = "scoreboard_snapshots_test"

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStoreTestSuite requires a local AWS mock (moto, localstack) at DDB_ENDPOINT.
type SnapshotStoreTestSuite struct {
	suite.Suite
	store *SnapshotStore
}

func TestSnapshotStoreTestSuite(t *testing.T) {
	if os.Getenv("DDB_ENDPOINT") == "" {
		t.Skip("DDB_ENDPOINT not set")
	}
	suite.Run(t, new(SnapshotStoreTestSuite))
}

func (s *SnapshotStoreTestSuite) SetupSuite() {
	ctx := context.Background()
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		s.FailNow("Failed to load AWS config", err)
	}
	cli := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(os.Getenv("DDB_ENDPOINT"))
		if o.Region == "" {
			o.Region = "us-east-1"
		}
		o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
	})
	s.store, err = NewSnapshotStore(ctx, TestTableName, cli)
	s.Require().NoError(err)
}

func (s *SnapshotStoreTestSuite) SetupTest() {
	s.NoError(s.store.ClearAll(context.Background()))
}

func (s *SnapshotStoreTestSuite) TestRoundTrip() {
	ctx := context.Background()
	_, err := s.store.Load(ctx, "gamesToday")
	s.ErrorIs(err, types.ErrNotFound)

	s.Require().NoError(s.store.Save(ctx, "gamesToday", []byte{0x28, 0xb5, 0x2f, 0xfd}))
	s.Require().NoError(s.store.Save(ctx, "standings", []byte("a")))
	s.Require().NoError(s.store.Save(ctx, "standings", []byte("b")))

	b, err := s.store.Load(ctx, "gamesToday")
	s.Require().NoError(err)
	s.Equal([]byte{0x28, 0xb5, 0x2f, 0xfd}, b)
	b, err = s.store.Load(ctx, "standings")
	s.Require().NoError(err)
	s.Equal([]byte("b"), b)

	keys, err := s.store.Keys(ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"gamesToday", "standings"}, keys)
}

func (s *SnapshotStoreTestSuite) TestClearAll() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "importantGame 001", []byte("x")))
	s.Require().NoError(s.store.ClearAll(ctx))

	keys, err := s.store.Keys(ctx)
	s.Require().NoError(err)
	s.Empty(keys)
	_, err = s.store.Load(ctx, "importantGame 001")
	s.ErrorIs(err, types.ErrNotFound)
}

func TestSnapshotKeyParsing(t *testing.T) {
	assert.Equal(t, "SNAP#standings", skSnapshot("standings"))
	assert.Equal(t, "standings", parseSnapshotKey(skSnapshot("standings")))
	assert.Equal(t, "other", parseSnapshotKey("other"))
}
