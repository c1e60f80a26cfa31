package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io/ioutil"
	"log"
	"math/rand"
	"time"

	"github.com/itiky/synclist/model"
)

// DemoPassword is the password of all generated demo users.
const DemoPassword = "synclist"

type (
	// storeData is the Store GOB representation.
	storeData struct {
		Users []User
		Lists []listData
	}

	listData struct {
		Id        model.ListId
		Name      string
		Owner     model.UserId
		Members   []model.UserId
		CreatedAt time.Time
		// Soft deleted items are kept
		Items []Item
	}
)

var demoItemNames = []string{
	"Milk", "Bread", "Eggs", "Butter", "Cheese", "Apples", "Bananas", "Coffee", "Tea", "Rice",
	"Pasta", "Tomatoes", "Onions", "Garlic", "Olive oil", "Chicken", "Yogurt", "Cereal", "Juice", "Soap",
}

// SaveToFile saves the Store state to file system.
func (s *Store) SaveToFile(filePath string) error {
	s.RLock()
	data := s.export()
	s.RUnlock()

	raw := new(bytes.Buffer)
	if err := gob.NewEncoder(raw).Encode(data); err != nil {
		return fmt.Errorf("GOB marshal: %w", err)
	}

	if err := ioutil.WriteFile(filePath, raw.Bytes(), 0644); err != nil {
		return fmt.Errorf("write to file (%s): %w", filePath, err)
	}

	return nil
}

// NewStoreFromFile builds the Store object from the file.
func NewStoreFromFile(filePath string) (*Store, error) {
	raw, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file (%s): %w", filePath, err)
	}

	data := storeData{}
	if err := gob.NewDecoder(bytes.NewBuffer(raw)).Decode(&data); err != nil {
		return nil, fmt.Errorf("GOB unmarshal: %w", err)
	}

	s := newStoreFromData(data)
	log.Printf("Store loaded: %d users, %d lists, %d items", len(s.users), len(s.lists), len(s.itemLists))

	return s, nil
}

// GenAndSaveDemoStore generates demo users / lists / items and saves them to file system.
func GenAndSaveDemoStore(filePath string, usersNum, listsNum, itemsNum int) error {
	if usersNum <= 0 {
		return fmt.Errorf("%s: must be GT 0", "usersNum")
	}
	if listsNum < 0 {
		return fmt.Errorf("%s: must be GTE 0", "listsNum")
	}
	if itemsNum < 0 {
		return fmt.Errorf("%s: must be GTE 0", "itemsNum")
	}

	log.Printf("Creating objects...")
	s, err := NewDemoStore(usersNum, listsNum, itemsNum, time.Now().UTC())
	if err != nil {
		return err
	}

	log.Printf("Saving file...")
	if err := s.SaveToFile(filePath); err != nil {
		return err
	}

	log.Printf("Done: users user1@synclist.dev .. user%d@synclist.dev, password %q", usersNum, DemoPassword)

	return nil
}

// NewDemoStore builds a Store with random demo data.
// Every list is owned by a random user and joined by the rest with 50% probability.
func NewDemoStore(usersNum, listsNum, itemsNum int, now time.Time) (*Store, error) {
	s := NewStore()

	users := make([]User, 0, usersNum)
	for i := 1; i <= usersNum; i++ {
		user, err := s.CreateUser(fmt.Sprintf("user%d", i), fmt.Sprintf("user%d@synclist.dev", i), DemoPassword, now)
		if err != nil {
			return nil, fmt.Errorf("user[%d]: %w", i, err)
		}
		users = append(users, user)
	}

	for i := 1; i <= listsNum; i++ {
		owner := users[rand.Intn(len(users))]
		list, err := s.CreateList(owner.Id, fmt.Sprintf("List %d", i), now.Add(time.Duration(i)*time.Second))
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}

		members := []User{owner}
		for _, user := range users {
			if user.Id == owner.Id || rand.Intn(2) == 0 {
				continue
			}
			if _, err := s.JoinList(user.Id, list.Id); err != nil {
				return nil, fmt.Errorf("list[%d]: join: %w", i, err)
			}
			members = append(members, user)
		}

		for j := 0; j < itemsNum; j++ {
			member := members[rand.Intn(len(members))]
			delta, err := s.AddItem(member.Id, list.Id, demoItemNames[rand.Intn(len(demoItemNames))], now)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: item[%d]: %w", i, j, err)
			}
			if rand.Intn(3) == 0 {
				if _, _, err := s.ToggleClaim(member.Id, delta.ItemId, now); err != nil {
					return nil, fmt.Errorf("list[%d]: item[%d]: claim: %w", i, j, err)
				}
			}
		}
	}

	return s, nil
}

// export builds the GOB representation.
// Must be called under lock.
func (s *Store) export() storeData {
	data := storeData{
		Users: make([]User, 0, len(s.users)),
		Lists: make([]listData, 0, len(s.lists)),
	}

	for _, user := range s.users {
		data.Users = append(data.Users, *user)
	}
	for _, list := range s.lists {
		ld := listData{
			Id:        list.Id,
			Name:      list.Name,
			Owner:     list.Owner,
			Members:   list.Members,
			CreatedAt: list.CreatedAt,
			Items:     make([]Item, 0, len(list.items.idDataMatch)),
		}
		// live items keep their arrival order, soft deleted ones follow
		for _, item := range list.items.list {
			ld.Items = append(ld.Items, *item)
		}
		for _, item := range list.items.idDataMatch {
			if item.IsDeleted {
				ld.Items = append(ld.Items, *item)
			}
		}
		data.Lists = append(data.Lists, ld)
	}

	return data
}

// newStoreFromData builds the Store object from the GOB representation.
func newStoreFromData(data storeData) *Store {
	s := NewStore()

	for idx := range data.Users {
		user := data.Users[idx]
		s.users[user.Id] = &user
		s.emailIndex[normalizeEmail(user.Email)] = user.Id
	}

	for _, ld := range data.Lists {
		list := &List{
			Id:        ld.Id,
			Name:      ld.Name,
			Owner:     ld.Owner,
			Members:   ld.Members,
			CreatedAt: ld.CreatedAt,
			items:     newItemStorageFromObjs(ld.Id, ld.Items),
		}
		if list.Members == nil {
			list.Members = make([]model.UserId, 0)
		}
		s.lists[list.Id] = list

		for itemId := range list.items.idDataMatch {
			s.itemLists[itemId] = list.Id
		}
	}

	return s
}

// newItemStorageFromObjs builds the ItemStorage object from storage items.
func newItemStorageFromObjs(listId model.ListId, objs []Item) *ItemStorage {
	s := NewItemStorage(listId)

	s.list = make([]*Item, 0, len(objs))
	for idx := 0; idx < len(objs); idx++ {
		item := &objs[idx]
		s.idDataMatch[item.Id.String()] = item
		if !item.IsDeleted {
			s.list = append(s.list, item)
		}
	}

	return s
}
