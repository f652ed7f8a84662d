package delivery

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestTemplate(t *testing.T) {
	suite.Run(t, new(templateTestSuite))
}

type templateTestSuite struct {
	suite.Suite
}

func (suite *templateTestSuite) TestRenderSubstitutesParameters() {
	template := &Template{
		Name:    "meeting reminder",
		Content: "Hello {name}, reminder for the meeting tomorrow at {time}",
	}

	rendered := template.Render(map[string]string{
		"name": "Jane",
		"time": "10:00",
	})

	assert.Equal(suite.T(), "Hello Jane, reminder for the meeting tomorrow at 10:00", rendered)
}

func (suite *templateTestSuite) TestRenderLeavesUnknownPlaceholders() {
	template := &Template{
		Name:    "status update",
		Content: "Hello {name}, your status is now {status}",
	}

	rendered := template.Render(map[string]string{"name": "Jane"})

	assert.Equal(suite.T(), "Hello Jane, your status is now {status}", rendered)
}

func (suite *templateTestSuite) TestRenderWithoutParameters() {
	template := &Template{Name: "greeting", Content: "Happy birthday {name}!"}

	assert.Equal(suite.T(), "Happy birthday {name}!", template.Render(nil))
}

func (suite *templateTestSuite) TestValidation() {
	missingName := &Template{Content: "hello"}
	assert.IsType(suite.T(), ValidationError{}, missingName.Validate())

	missingContent := &Template{Name: "greeting"}
	assert.IsType(suite.T(), ValidationError{}, missingContent.Validate())

	valid := &Template{Name: "greeting", Content: "hello"}
	assert.NoError(suite.T(), valid.Validate())
}

func (suite *templateTestSuite) TestMemoryRepository() {
	repo := NewMemoryTemplates()

	_, err := repo.Get(uuid.New())
	assert.Equal(suite.T(), TemplateNotFoundErr, err)

	template := &Template{
		Uuid:    uuid.New(),
		Name:    "greeting",
		Content: "Happy birthday {name}!",
	}

	assert.NoError(suite.T(), repo.Create(template))

	stored, err := repo.Get(template.Uuid)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "greeting", stored.Name)

	all, err := repo.GetAll()
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 1)

	assert.NoError(suite.T(), repo.Delete(template))

	_, err = repo.Get(template.Uuid)
	assert.Equal(suite.T(), TemplateNotFoundErr, err)
}
