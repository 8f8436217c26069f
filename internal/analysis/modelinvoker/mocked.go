// internal/analysis/modelinvoker/mocked.go
package modelinvoker

import (
	"context"
	"time"

	"usability-workers/internal/common/logger"
)

const (
	MockedInvokerDelay = 4 * time.Second
	MockedTokenCount   = 300
)

// MockedUsabilityIssues is the canned report returned by MockedInvoker.
const MockedUsabilityIssues = `1. The font size is excessively small, which makes the text difficult to read and can strain the eyes of the viewer.

2. The color scheme is inconsistent and poorly implemented, leading to a confusing and ineffective visual hierarchy that fails to guide the user's attention properly.

3. The layout is not responsive, causing significant issues and a subpar viewing experience on devices with different screen sizes.

4. Navigation throughout the site is overly complicated and unintuitive, leading to user confusion and a decrease in the overall usability of the site.

5. There is a noticeable lack of accessibility options, such as support for screen readers, which makes the site difficult or impossible to use for users with certain disabilities.

6. Users experience slow loading times, which can be frustrating and negatively affect the overall user experience and satisfaction.

7. The interface is overloaded with an excessive number of elements crammed into one screen, overwhelming users and detracting from the site's usability.

8. Error messages are unclear and do not provide sufficient guidance to users, leaving them confused about how to resolve issues.

9. There is inadequate feedback provided on user actions, such as a lack of confirmation after submitting a form, leaving users uncertain about whether their actions have been successfully completed.

10. The touch target sizes on mobile devices are poorly designed and too small, making buttons difficult to tap accurately and leading to a frustrating user experience.`

// MockedInvoker ignores the request and answers with MockedUsabilityIssues.
type MockedInvoker struct {
	text   string
	delay  time.Duration
	logger logger.Logger
}

type MockOption func(*MockedInvoker)

// WithMockDelay replaces MockedInvokerDelay for the lifetime of the invoker.
func WithMockDelay(d time.Duration) MockOption {
	return func(m *MockedInvoker) { m.delay = d }
}

func NewMockedInvoker(log logger.Logger, opts ...MockOption) *MockedInvoker {
	m := &MockedInvoker{
		text:   MockedUsabilityIssues,
		delay:  MockedInvokerDelay,
		logger: log.With(map[string]interface{}{"component": "model-invoker", "provider": "mocked"}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockedInvoker) Invoke(ctx context.Context, _ Request) (*Response, error) {
	timer := time.NewTimer(m.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.logger.Debug("returning mocked usability issues", map[string]interface{}{"tokens": MockedTokenCount})
	return &Response{Text: m.text, TokenCount: MockedTokenCount}, nil
}
