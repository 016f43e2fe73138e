package processor

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"portal-server/internal/docstore"
	"portal-server/internal/observability"
)

// fakeAdStore serves canned ads and records list calls.
type fakeAdStore struct {
	ads        map[string]docstore.DirectAd
	listCalls  []docstore.DirectAdFilter
	listLimits []int
	listResult map[docstore.DirectAdFilter][]docstore.DirectAd

	created docstore.DirectAd
	updated bson.M
}

func newFakeAdStore() *fakeAdStore {
	return &fakeAdStore{
		ads:        make(map[string]docstore.DirectAd),
		listResult: make(map[docstore.DirectAdFilter][]docstore.DirectAd),
	}
}

func (f *fakeAdStore) CreateDirectAd(ctx context.Context, ad docstore.DirectAd) (string, error) {
	f.created = ad
	return "ad-1", nil
}

func (f *fakeAdStore) GetDirectAd(ctx context.Context, id string) (docstore.DirectAd, error) {
	if ad, ok := f.ads[id]; ok {
		return ad, nil
	}
	return docstore.DirectAd{}, docstore.ErrNotFound
}

func (f *fakeAdStore) UpdateDirectAd(ctx context.Context, id string, fields bson.M) (docstore.DirectAd, error) {
	if _, ok := f.ads[id]; !ok {
		return docstore.DirectAd{}, docstore.ErrNotFound
	}
	f.updated = fields
	return f.ads[id], nil
}

func (f *fakeAdStore) ListDirectAds(ctx context.Context, filter docstore.DirectAdFilter, limit int) ([]docstore.DirectAd, error) {
	f.listCalls = append(f.listCalls, filter)
	f.listLimits = append(f.listLimits, limit)
	return f.listResult[filter], nil
}

func (f *fakeAdStore) DeleteDirectAd(ctx context.Context, id string) error {
	if _, ok := f.ads[id]; !ok {
		return docstore.ErrNotFound
	}
	delete(f.ads, id)
	return nil
}

func (f *fakeAdStore) GetDirectAdMetrics(ctx context.Context, id string) (docstore.AdMetrics, error) {
	if _, ok := f.ads[id]; !ok {
		return docstore.AdMetrics{}, docstore.ErrNotFound
	}
	return docstore.AdMetrics{}, nil
}

func (f *fakeAdStore) IncrementImpression(ctx context.Context, id string, detail *docstore.TrackDetail) error {
	if _, ok := f.ads[id]; !ok {
		return docstore.ErrNotFound
	}
	return nil
}

func (f *fakeAdStore) IncrementClick(ctx context.Context, id string, detail *docstore.TrackDetail) error {
	if _, ok := f.ads[id]; !ok {
		return docstore.ErrNotFound
	}
	return nil
}

func newTestAdProcessor(s *fakeAdStore) DirectAdProcessor {
	return New(s, observability.NewLogger())
}

func TestCreateAd_NormalizesEnums(t *testing.T) {
	fakeStore := newFakeAdStore()
	proc := newTestAdProcessor(fakeStore)

	_, err := proc.CreateAd(context.Background(), CreateAdRequest{
		AdType:         "EVENT_FAB",
		AdvertiserName: "Acme",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fakeStore.created.AdType != docstore.AdTypeFloatingFab {
		t.Errorf("expected legacy EVENT_FAB to map to FLOATING_FAB, got %q", fakeStore.created.AdType)
	}
	if fakeStore.created.Status != docstore.AdStatusDraft {
		t.Errorf("expected empty status to default to DRAFT, got %q", fakeStore.created.Status)
	}
}

func TestCreateAd_UnknownTypeKept(t *testing.T) {
	fakeStore := newFakeAdStore()
	proc := newTestAdProcessor(fakeStore)

	_, err := proc.CreateAd(context.Background(), CreateAdRequest{
		AdType:         "SOMETHING_RETIRED",
		AdvertiserName: "Acme",
		Status:         "ACTIVE",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fakeStore.created.AdType != docstore.AdTypeUnknown {
		t.Errorf("expected unknown type to stay Unknown, got %q", fakeStore.created.AdType)
	}
}

func TestListAds_LimitClamped(t *testing.T) {
	fakeStore := newFakeAdStore()
	proc := newTestAdProcessor(fakeStore)
	ctx := context.Background()

	if _, err := proc.ListAds(ctx, "", "", 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := proc.ListAds(ctx, "", "", 10000); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fakeStore.listLimits[0] != 50 || fakeStore.listLimits[1] != 200 {
		t.Errorf("expected limits 50 and 200, got %v", fakeStore.listLimits)
	}
}

func TestListAds_AllFilterIgnored(t *testing.T) {
	fakeStore := newFakeAdStore()
	proc := newTestAdProcessor(fakeStore)

	if _, err := proc.ListAds(context.Background(), "all", "*", 10); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(fakeStore.listCalls) != 1 {
		t.Fatalf("expected a single list call, got %d", len(fakeStore.listCalls))
	}
	if fakeStore.listCalls[0] != (docstore.DirectAdFilter{}) {
		t.Errorf("expected empty filter, got %+v", fakeStore.listCalls[0])
	}
}

func TestListAds_EmptyFilteredFallsBack(t *testing.T) {
	fakeStore := newFakeAdStore()
	unfiltered := []docstore.DirectAd{{AdvertiserName: "Acme"}}
	fakeStore.listResult[docstore.DirectAdFilter{}] = unfiltered
	proc := newTestAdProcessor(fakeStore)

	ads, err := proc.ListAds(context.Background(), "ACTIVE", "", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(fakeStore.listCalls) != 2 {
		t.Fatalf("expected filtered call then fallback, got %d calls", len(fakeStore.listCalls))
	}
	if len(ads) != 1 || ads[0].AdvertiserName != "Acme" {
		t.Errorf("expected unfiltered inventory, got %+v", ads)
	}
}

func TestGetAd_NotFound(t *testing.T) {
	proc := newTestAdProcessor(newFakeAdStore())

	_, err := proc.GetAd(context.Background(), "missing")
	if !errors.Is(err, ErrAdNotFound) {
		t.Errorf("expected ErrAdNotFound, got %v", err)
	}
}

func TestUpdateAd_NormalizesEnumFields(t *testing.T) {
	fakeStore := newFakeAdStore()
	fakeStore.ads["ad-1"] = docstore.DirectAd{AdvertiserName: "Acme"}
	proc := newTestAdProcessor(fakeStore)

	_, err := proc.UpdateAd(context.Background(), "ad-1", map[string]any{
		"status":         "active",
		"advertiserName": "New Name",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fakeStore.updated["status"] != docstore.AdStatusActive {
		t.Errorf("expected normalized status ACTIVE, got %v", fakeStore.updated["status"])
	}
	if fakeStore.updated["advertiserName"] != "New Name" {
		t.Errorf("expected advertiserName passthrough, got %v", fakeStore.updated["advertiserName"])
	}
}

func TestTrackImpression_NotFound(t *testing.T) {
	proc := newTestAdProcessor(newFakeAdStore())

	if err := proc.TrackImpression(context.Background(), "missing", nil); !errors.Is(err, ErrAdNotFound) {
		t.Errorf("expected ErrAdNotFound, got %v", err)
	}
}
