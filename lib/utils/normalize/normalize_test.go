package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ats-sync-backend/models"
)

func TestNormalize(t *testing.T) {
	t.Run(`Email folds gmail aliases`, func(t *testing.T) {
		require.Equal(t, "johndoe@gmail.com", Email("John.Doe+promo@gmail.com"))
		require.Equal(t, "johndoe@googlemail.com", Email("  john.doe@GoogleMail.com "))
	})

	t.Run(`Email keeps other domains except case and spaces`, func(t *testing.T) {
		require.Equal(t, "john.doe+promo@company.com", Email("John.Doe+promo@company.com"))
		require.Equal(t, "", Email("   "))
		require.Equal(t, "not-an-email", Email("Not-An-Email"))
	})

	t.Run(`Phone keeps digits`, func(t *testing.T) {
		require.Equal(t, "15551234567", Phone("+1 (555) 123-4567"))
		require.Equal(t, "", Phone("n/a"))
	})

	t.Run(`CompositeKey`, func(t *testing.T) {
		require.Equal(t, "2025-0001|johndoe@gmail.com", CompositeKey(" 2025-0001 ", "John.Doe@gmail.com"))
		require.Equal(t, "|a@x.com", CompositeKey("", "a@x.com"))
		first := CompositeKey("", "")
		second := CompositeKey(" ", "")
		require.True(t, IsEmptyKey(first))
		require.True(t, IsEmptyKey(second))
		require.NotEqual(t, first, second)
	})

	t.Run(`CanonicalStatus`, func(t *testing.T) {
		require.Equal(t, models.StatusOpen, CanonicalStatus("open"))
		require.Equal(t, models.StatusOnHold, CanonicalStatus(" ON  hold "))
		require.Equal(t, models.StatusOnHold, CanonicalStatus("on-hold"))
		require.Equal(t, models.StatusPendingApproval, CanonicalStatus("pending approval"))
		require.Equal(t, models.StatusHired, CanonicalStatus("HIRED"))
		require.Equal(t, models.RequisitionStatus("Draft Posting"), CanonicalStatus("draft posting"))
		require.Equal(t, models.RequisitionStatus(""), CanonicalStatus("  "))
	})

	t.Run(`URL adds https to bare addresses`, func(t *testing.T) {
		require.Equal(t, "https://www.example.com/cv.pdf", URL(" www.example.com/cv.pdf "))
		require.Equal(t, "https://linkedin.com/in/jdoe", URL("linkedin.com/in/jdoe"))
		require.Equal(t, "https://docs.example.org/cv", URL("docs.example.org/cv"))
		require.Equal(t, "http://example.com", URL("http://example.com"))
		require.Equal(t, "mailto:a@x.com", URL("mailto:a@x.com"))
		require.Equal(t, "not a link", URL("not a link"))
		require.Equal(t, "", URL("  "))
	})
}
