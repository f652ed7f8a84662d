package gopg

import (
	"github.com/go-pg/pg"
	"github.com/google/uuid"

	delivery "github.com/interactive-solutions/go-delivery"
)

func NewTemplateRepository(db *pg.DB) delivery.TemplateRepository {
	return &templateRepository{
		db: db,
	}
}

type templateWrapper struct {
	TableName struct{} `sql:"delivery_templates, alias:dtp" json:"-"`

	*delivery.Template
}

type templateRepository struct {
	db *pg.DB
}

func (repo *templateRepository) Get(id uuid.UUID) (delivery.Template, error) {
	wrapped := templateWrapper{Template: &delivery.Template{}}

	if err := repo.db.Model(&wrapped).Where("uuid = ?", id).Select(); err != nil {
		if err == pg.ErrNoRows {
			return delivery.Template{}, delivery.TemplateNotFoundErr
		}

		return delivery.Template{}, err
	}

	return *wrapped.Template, nil
}

func (repo *templateRepository) GetAll() ([]delivery.Template, error) {
	var templates []delivery.Template
	var wrappedTemplates []templateWrapper

	if err := repo.db.Model(&wrappedTemplates).Order("name ASC").Select(); err != nil {
		if err == pg.ErrNoRows {
			return templates, nil
		}

		return templates, err
	}

	for _, wrapped := range wrappedTemplates {
		templates = append(templates, *wrapped.Template)
	}

	return templates, nil
}

func (repo *templateRepository) Create(template *delivery.Template) error {
	return repo.db.Insert(&templateWrapper{Template: template})
}

func (repo *templateRepository) Update(template *delivery.Template) error {
	return repo.db.Update(&templateWrapper{Template: template})
}

func (repo *templateRepository) Delete(template *delivery.Template) error {
	return repo.db.Delete(&templateWrapper{Template: template})
}
