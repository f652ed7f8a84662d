package gopg

import (
	"github.com/go-pg/pg"
	"github.com/google/uuid"

	delivery "github.com/interactive-solutions/go-delivery"
)

func NewContactRepository(db *pg.DB) delivery.ContactRepository {
	return &contactRepository{
		db: db,
	}
}

type contactWrapper struct {
	TableName struct{} `sql:"delivery_contacts, alias:dc" json:"-"`

	*delivery.Contact
}

type contactRepository struct {
	db *pg.DB
}

func (repo *contactRepository) Get(id uuid.UUID) (delivery.Contact, error) {
	wrapped := contactWrapper{Contact: &delivery.Contact{}}

	if err := repo.db.Model(&wrapped).Where("uuid = ?", id).Select(); err != nil {
		if err == pg.ErrNoRows {
			return delivery.Contact{}, delivery.ContactNotFoundErr
		}

		return delivery.Contact{}, err
	}

	return *wrapped.Contact, nil
}

func (repo *contactRepository) GetAll() ([]delivery.Contact, error) {
	var contacts []delivery.Contact
	var wrappedContacts []contactWrapper

	if err := repo.db.Model(&wrappedContacts).Order("name ASC").Select(); err != nil {
		if err == pg.ErrNoRows {
			return contacts, nil
		}

		return contacts, err
	}

	for _, wrapped := range wrappedContacts {
		contacts = append(contacts, *wrapped.Contact)
	}

	return contacts, nil
}

func (repo *contactRepository) Create(contact *delivery.Contact) error {
	return repo.db.Insert(&contactWrapper{Contact: contact})
}

func (repo *contactRepository) Update(contact *delivery.Contact) error {
	return repo.db.Update(&contactWrapper{Contact: contact})
}

func (repo *contactRepository) Delete(contact *delivery.Contact) error {
	return repo.db.Delete(&contactWrapper{Contact: contact})
}
